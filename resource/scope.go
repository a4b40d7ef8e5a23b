package resource

import stderrors "errors"

// Scope collects the borrows and lends made for one call and ends them all
// when the call returns.
type Scope struct {
	items []scoped
}

type scoped struct {
	table  *Table
	handle Handle
	lend   bool
}

// Borrow borrows h from t until the scope is closed.
func (s *Scope) Borrow(t *Table, h Handle) (any, error) {
	v, err := t.Borrow(h)
	if err != nil {
		return nil, err
	}
	s.items = append(s.items, scoped{table: t, handle: h})
	return v, nil
}

// Lend lends h from t until the scope is closed and returns the lend handle.
func (s *Scope) Lend(t *Table, h Handle) (Handle, error) {
	lh, err := t.Lend(h)
	if err != nil {
		return 0, err
	}
	s.items = append(s.items, scoped{table: t, handle: lh, lend: true})
	return lh, nil
}

// Len returns the number of open borrows and lends.
func (s *Scope) Len() int { return len(s.items) }

// Close ends every borrow and lend, newest first. The scope can be reused
// afterwards.
func (s *Scope) Close() error {
	var errs []error
	for i := len(s.items) - 1; i >= 0; i-- {
		it := s.items[i]
		var err error
		if it.lend {
			err = it.table.EndLend(it.handle)
		} else {
			err = it.table.Release(it.handle)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	s.items = s.items[:0]
	return stderrors.Join(errs...)
}
