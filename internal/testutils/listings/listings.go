// Package listings writes a small synthetic table of housing listings for tests.
package listings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Columns of the table. "price" is the label.
var Columns = []string{"bedrooms", "bathrooms", "accommodates", "price"}

// CSV returns n rows of listings. price is a deterministic function of the other columns.
func CSV(n int) string {
	b := new(strings.Builder)
	b.WriteString(strings.Join(Columns, ",") + "\n")
	for i := range n {
		bedrooms := i%4 + 1
		bathrooms := float64(i%3)*0.5 + 1
		accommodates := bedrooms*2 + i%2
		price := 40*float64(bedrooms) + 25*bathrooms + 8*float64(accommodates)
		fmt.Fprintf(b, "%d,%g,%d,%g\n", bedrooms, bathrooms, accommodates, price)
	}
	return b.String()
}

// Write puts n rows of listings into a file in a temporary directory, and returns its path.
func Write(t *testing.T, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "listings.csv")
	if err := os.WriteFile(path, []byte(CSV(n)), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}
