package eventlog

const (
	KindSystem        = "system"
	KindFile          = "file"
	KindElasticsearch = "elasticsearch"
	KindPostgres      = "postgres"
)

// PrivilegeCheck returns the elevation predicate for a channel kind. Only the
// host's protected security channel needs elevation up front; for the others a
// permission problem is reported by Open.
func PrivilegeCheck(kind string) func() bool {
	if kind == KindSystem {
		return IsElevated
	}
	return func() bool { return true }
}
