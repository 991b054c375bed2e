package main

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const (
	ordersJSON = `{"name": "orders", "columns": [{"name": "customer"}, {"name": "amount"}],
		"rows": [["ann", 30], ["bob", 5], ["ann", 12]]}`
	totalsPlan = `{"op": "aggregate", "group_by": ["customer"],
		"aggregations": [{"kind": "sum", "column": "amount", "as": "total"}],
		"input": {"op": "scan", "relation": "orders"}}`
)

func TestQueryCommand_Table(t *testing.T) {
	dir := t.TempDir()
	data := writeFile(t, dir, "orders.json", ordersJSON)
	planFile := writeFile(t, dir, "plan.json", totalsPlan)

	out, err := run(t, "", "query", "--plan", planFile, "--data", data, "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, "customer  total\nann       42\nbob       5\n(2 rows)\n", out)
}

func TestQueryCommand_JSONFromStdin(t *testing.T) {
	dir := t.TempDir()
	data := writeFile(t, dir, "orders.json", ordersJSON)

	out, err := run(t, totalsPlan, "query", "-p", "-", "-d", data, "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name": "orders", "columns": [{"name": "customer", "type": "string"}, {"name": "total"}],
		"rows": [["ann", 42], ["bob", 5]]}`, out)
}

func TestQueryCommand_SQLiteLoad(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "shop.db")
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE orders (customer TEXT, amount INTEGER);
		INSERT INTO orders VALUES ('ann', 30), ('bob', 5), ('ann', 12);`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	planFile := writeFile(t, dir, "plan.json", totalsPlan)
	out, err := run(t, "", "query", "--plan", planFile, "--sqlite", dbPath, "--load", "orders=SELECT customer, amount FROM orders")
	require.NoError(t, err)
	assert.Contains(t, out, "ann       42")
}

func TestQueryCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	data := writeFile(t, dir, "orders.json", ordersJSON)
	planFile := writeFile(t, dir, "plan.json", totalsPlan)

	_, err := run(t, "", "query", "--data", data)
	assert.Error(t, err, "plan is required")

	_, err = run(t, "", "query", "--plan", planFile)
	assert.ErrorContains(t, err, "orders")

	_, err = run(t, "", "query", "--plan", planFile, "--data", data, "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")

	_, err = run(t, "", "query", "--plan", planFile, "--load", "orders=SELECT 1")
	assert.ErrorContains(t, err, "--sqlite or --postgres")

	bad := writeFile(t, dir, "bad.json", `{"op": "scan"}`)
	_, err = run(t, "", "query", "--plan", bad, "--data", data)
	assert.ErrorContains(t, err, "invalid plan")
}

func TestExplainCommand(t *testing.T) {
	dir := t.TempDir()
	data := writeFile(t, dir, "orders.json", ordersJSON)
	planFile := writeFile(t, dir, "plan.json", totalsPlan)

	out, err := run(t, "", "explain", "--plan", planFile, "--data", data)
	require.NoError(t, err)
	assert.Equal(t,
		"  Value orders(customer string, amount bigint)\n"+
			"Aggregation[group by customer; sum(amount) AS total] -> orders(customer string, total)\n",
		out)
}

func TestConfigFlag(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "memquery.yaml", "exec:\n  max_rows: 1\n")
	data := writeFile(t, dir, "orders.json", ordersJSON)
	planFile := writeFile(t, dir, "plan.json", totalsPlan)

	_, err := run(t, "", "query", "--config", cfg, "--plan", planFile, "--data", data)
	assert.ErrorContains(t, err, "more than 1 rows")

	_, err = run(t, "", "query", "--config", filepath.Join(dir, "missing.yaml"), "--plan", planFile)
	assert.Error(t, err)
}
