package resourcespan

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ServiceNameParam overrides the remote service name when present in a
// connection URL, e.g. postgres://db:5432/orders?traceServiceName=orders-db.
const ServiceNameParam = "traceServiceName"

// ConnectionMetadata describes a live connection. Both methods are best effort.
type ConnectionMetadata interface {
	URL() (string, error)
	Catalog() (string, error)
}

type Endpoint struct {
	Host        string
	Port        int
	Database    string
	ServiceName string
}

// ParseEndpoint accepts URL style data source names as well as postgres
// keyword/value strings ("host=db port=5432 dbname=orders").
func ParseEndpoint(raw string) (Endpoint, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "jdbc:")
	if strings.Contains(raw, "://") {
		u, err := url.Parse(strings.ReplaceAll(raw, " ", ""))
		if err != nil {
			return Endpoint{}, err
		}
		ep := Endpoint{
			Host:        u.Hostname(),
			Database:    strings.TrimPrefix(u.Path, "/"),
			ServiceName: u.Query().Get(ServiceNameParam),
		}
		if p := u.Port(); p != "" {
			ep.Port, _ = strconv.Atoi(p)
		}
		return ep, nil
	}

	cfg, err := pgconn.ParseConfig(raw)
	if err != nil {
		return Endpoint{}, err
	}
	return Endpoint{
		Host:        cfg.Host,
		Port:        int(cfg.Port),
		Database:    cfg.Database,
		ServiceName: cfg.RuntimeParams[ServiceNameParam],
	}, nil
}
