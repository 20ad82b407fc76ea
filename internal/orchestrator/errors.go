package orchestrator

import (
	"errors"
	"fmt"
	"regexp"
)

var insufficientStockPattern = regexp.MustCompile(`(?i)insufficient stock for maximum sellable quantity (\d+)`)

// NormalizeServerError rewrites known constraint-violation messages from the
// server into a consistent user-facing phrasing. Unrecognized errors pass
// through verbatim.
func NormalizeServerError(err error) error {
	if err == nil {
		return nil
	}
	if match := insufficientStockPattern.FindStringSubmatch(err.Error()); match != nil {
		return fmt.Errorf("not enough stock on hand: at most %s can be sold", match[1])
	}
	return errors.New(err.Error())
}
