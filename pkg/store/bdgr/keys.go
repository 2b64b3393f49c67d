package bdgr

const tableSeparator = ':'

func tablePrefix(table string) []byte {
	prefix := make([]byte, 0, len(table)+1)
	prefix = append(prefix, table...)
	return append(prefix, tableSeparator)
}

// tableKey builds "<table>:<id>". The prefix is capped so that appending never writes into its backing array.
func tableKey(prefix []byte, id string) []byte {
	return append(prefix[:len(prefix):len(prefix)], id...)
}
