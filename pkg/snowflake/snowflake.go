package snowflake

// Snowflake hands out unique, roughly time ordered ids. The SQL driver
// adapter uses them as identity keys for connections, statements and rows.
type Snowflake interface {
	Generate() int64
}
