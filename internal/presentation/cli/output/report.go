package output

// Field is one "key: value" line of a plain report.
type Field struct {
	Key   string
	Value string
}

// Fields prints each field as an unindented "key: value" line.
func (f *Formatter) Fields(fields ...Field) error {
	for _, field := range fields {
		if err := f.Println("%s: %s", field.Key, field.Value); err != nil {
			return err
		}
	}
	return nil
}

// FileTokens prints the token count of one file as "<file>: <count>".
func (f *Formatter) FileTokens(file string, tokens int) error {
	return f.Println("%s: %d", file, tokens)
}

// TokenTotal prints the sum over all files.
func (f *Formatter) TokenTotal(total int) error {
	return f.Println("total: %d", total)
}

// LengthVerdict reports whether text fit within limit tokens.
func (f *Formatter) LengthVerdict(valid bool, limit int) error {
	if valid {
		return f.Success("fits within %d tokens", limit)
	}
	return f.Warning("exceeds %d tokens", limit)
}
