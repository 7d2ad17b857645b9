package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/platinummonkey/pfcatalog/pkg/normalize"
	"github.com/platinummonkey/pfcatalog/pkg/upstream"
)

func readRows(t *testing.T, data []byte, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheet}, f.GetSheetList())
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestWriteXLSX_Connections(t *testing.T) {
	conns := []normalize.Connection{
		normalize.NormalizeConnection(upstream.Record(`{"name":"Payroll","contactInfo":{"phone":"AD12345678"},"entityId":"urn:payroll","active":true,"spBrowserSso":{"enabledProfiles":["A","B"]}}`), nil),
		normalize.NormalizeConnection(upstream.Record(`{"name":"Travel"}`), nil),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, SheetName, normalize.ConnectionColumns(), conns))

	rows := readRows(t, buf.Bytes(), SheetName)
	require.Len(t, rows, 3)
	assert.Equal(t, normalize.ConnectionColumns(), rows[0])
	assert.Equal(t, []string{"Payroll", "AD12345678", "urn:payroll", "TRUE"}, rows[1][:4])
	assert.Equal(t, "A, B", rows[1][7])
	assert.Equal(t, "Travel", rows[2][0])
}

func TestWriteXLSX_NullCells(t *testing.T) {
	clients := []normalize.Client{
		normalize.NormalizeClient(upstream.Record(`{"clientId":"c1","description":"AD87654321"}`), nil),
		normalize.NormalizeClient(upstream.Record(`{"clientId":"c2"}`), nil),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, SheetName, normalize.ClientColumns(), clients))

	rows := readRows(t, buf.Bytes(), SheetName)
	require.Len(t, rows, 3)
	assert.Equal(t, "AD87654321", rows[1][len(normalize.ClientColumns())-1])
	assert.Equal(t, "c2", rows[2][0])
	assert.Equal(t, "INACTIVE", rows[2][2])
}

func TestWriteXLSX_EmptyHasHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, SheetName, normalize.ClientColumns(), []normalize.Client{}))

	rows := readRows(t, buf.Bytes(), SheetName)
	require.Len(t, rows, 1)
	assert.Equal(t, normalize.ClientColumns(), rows[0])
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "saml_connections_qa.xlsx", Filename("connections", "qa"))
	assert.Equal(t, "oauth_connections_dev.xlsx", Filename("clients", "dev"))
	assert.Equal(t, "other_connections_dev.xlsx", Filename("other", "dev"))
}
