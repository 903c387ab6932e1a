package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/shipment-docs/internal/common"
	"github.com/joseph-ayodele/shipment-docs/internal/form"
)

// edits are form changes given as command line flags.
type edits struct {
	sets        []string // FIELD=VALUE
	items       []string // INDEX.FIELD=VALUE
	addItems    int
	removeItems []int
}

// apply removes items first (highest index first, so indexes refer to the
// loaded record), then appends blanks, then sets values.
func (e edits) apply(f *form.Form) error {
	removes := append([]int(nil), e.removeItems...)
	sort.Sort(sort.Reverse(sort.IntSlice(removes)))
	for _, idx := range removes {
		if err := f.RemoveItem(idx); err != nil {
			return err
		}
	}
	for range e.addItems {
		f.AddItem()
	}
	for _, s := range e.sets {
		name, value, ok := strings.Cut(s, "=")
		if !ok {
			return fmt.Errorf("--set %q: want FIELD=VALUE: %w", s, common.ErrInvalidInput)
		}
		if err := f.SetValue(strings.TrimSpace(name), value); err != nil {
			return err
		}
	}
	for _, s := range e.items {
		idx, field, value, err := parseItemEdit(s)
		if err != nil {
			return err
		}
		if err := f.ChangeItem(idx, field, value); err != nil {
			return err
		}
	}
	return nil
}

func parseItemEdit(s string) (int, string, string, error) {
	key, value, ok := strings.Cut(s, "=")
	if !ok {
		return 0, "", "", fmt.Errorf("--item %q: want INDEX.FIELD=VALUE: %w", s, common.ErrInvalidInput)
	}
	idxStr, field, ok := strings.Cut(strings.TrimSpace(key), ".")
	if !ok {
		return 0, "", "", fmt.Errorf("--item %q: want INDEX.FIELD=VALUE: %w", s, common.ErrInvalidInput)
	}
	idx, err := strconv.Atoi(idxStr)
	if err != nil {
		return 0, "", "", fmt.Errorf("--item %q: bad index: %w", s, common.ErrInvalidInput)
	}
	return idx, field, value, nil
}
