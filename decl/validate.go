package decl

import "go.uber.org/multierr"

// Validate checks the class-level invariants that do not depend on
// member synthesis: the inner/enclosing relation and companion names.
func (c *ClassDecl) Validate() error {
	var err error
	switch {
	case c.Kind == Inner && c.Enclosing == "":
		err = multierr.Append(err, Errorf(InvalidEnclosingRef, c.Name, "",
			"inner class has no enclosing class"))
	case c.Kind != Inner && c.Enclosing != "":
		err = multierr.Append(err, Errorf(InvalidEnclosingRef, c.Name, "",
			"%s class must not reference enclosing class %s", c.Kind, c.Enclosing))
	}

	if c.Companion != nil {
		seen := make(map[string]bool)
		for _, m := range c.Companion.Members {
			name := Ident(m.Name)
			if seen[name] {
				err = multierr.Append(err, Errorf(DuplicateMember, c.Name, name,
					"companion member declared twice"))
			}
			seen[name] = true
		}
	}
	return err
}
