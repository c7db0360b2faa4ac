package sqlxrepos

import (
	"io/ioutil"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Guards the row structs against drifting from the migration schema: every
// db-tagged field must name a real column of its table.
func Test_rowStructsMatchSchema(t *testing.T) {
	schema, err := ioutil.ReadFile("../migrations/00001_init.sql")
	require.NoError(t, err)

	tables := []struct {
		table string
		row   interface{}
		// columns computed in queries (aliases, joins), not stored
		computed map[string]bool
	}{
		{table: "user", row: userRow{}},
		{table: "exercise", row: exerciseRow{}},
		{table: "solution", row: solutionRow{}},
		{table: "notification", row: notificationRow{}},
		{table: "comment", row: commentRow{}, computed: map[string]bool{"author_name": true, "text": true}},
	}
	for _, tt := range tables {
		t.Run(tt.table, func(t *testing.T) {
			cols := tableColumns(t, string(schema), tt.table)
			typ := reflect.TypeOf(tt.row)
			for i := 0; i < typ.NumField(); i++ {
				tag := typ.Field(i).Tag.Get("db")
				if tag == "" || tag == "-" || tt.computed[tag] {
					continue
				}
				assert.Truef(t, cols[tag], "column %q missing from table %q", tag, tt.table)
			}
		})
	}

	// comment_text rows are mapped through in-function structs
	ctCols := tableColumns(t, string(schema), "comment_text")
	for _, col := range []string{"id", "text", "linter_key"} {
		assert.Truef(t, ctCols[col], "column %q missing from table comment_text", col)
	}
}

func tableColumns(t *testing.T, schema, table string) map[string]bool {
	t.Helper()

	re := regexp.MustCompile(`(?s)CREATE TABLE "?` + table + `"? \((.*?)\);`)
	m := re.FindStringSubmatch(schema)
	require.NotNilf(t, m, "table %q not found in migration", table)

	cols := make(map[string]bool)
	for _, line := range strings.Split(m[1], "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "CHECK") {
			continue
		}
		cols[strings.Fields(line)[0]] = true
	}
	return cols
}
