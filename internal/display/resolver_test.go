package display_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tamias-pos/customer-display/internal/display"
	"github.com/tamias-pos/customer-display/internal/display/displaytest"
	"github.com/tamias-pos/customer-display/pkg/models"
	"go.uber.org/zap"
)

const defaultStoreName = "Tamias POS"

var (
	kopiKita = models.Store{ID: "7f1c2d9e-store", Name: "Kopi Kita", DisplayID: "12345678"}
	budi     = models.Cashier{ID: "emp-1", Name: "Budi", EmployeeCode: "K-001"}
	sari     = models.Cashier{ID: "emp-2", Name: "Sari", EmployeeCode: "K-002", AvatarURL: "https://cdn.example/sari.png"}
)

func newDirectory() *displaytest.Directory {
	dir := displaytest.NewDirectory()
	dir.AddStore(kopiKita, budi, sari)
	return dir
}

func TestIsShortCode(t *testing.T) {
	tests := map[string]bool{
		"12345678":       true,
		"00000000":       true,
		"1234567":        false,
		"123456789":      false,
		"1234567a":       false,
		"7f1c2d9e-store": false,
		"":               false,
	}
	for ref, want := range tests {
		assert.Equal(t, want, display.IsShortCode(ref), ref)
	}
}

func TestResolveShortCode(t *testing.T) {
	dir := newDirectory()
	r := display.NewResolver(dir, defaultStoreName, zap.NewNop())

	res := r.Resolve(context.Background(), "12345678")

	require.True(t, res.Found)
	assert.Equal(t, kopiKita, res.Store)
	assert.Equal(t, []models.Cashier{budi, sari}, res.Cashiers)

	shortCode, byID, cashiers := dir.Calls()
	assert.Equal(t, 1, shortCode)
	assert.Equal(t, 0, byID, "an 8-digit ref must never be used as a store id")
	assert.Equal(t, 1, cashiers)
}

func TestResolveStoreID(t *testing.T) {
	dir := newDirectory()
	r := display.NewResolver(dir, defaultStoreName, zap.NewNop())

	res := r.Resolve(context.Background(), kopiKita.ID)

	require.True(t, res.Found)
	assert.Equal(t, "Kopi Kita", res.Store.Name)
	assert.Equal(t, kopiKita.ID, res.Store.ID)
	assert.Len(t, res.Cashiers, 2)

	shortCode, byID, _ := dir.Calls()
	assert.Equal(t, 0, shortCode)
	assert.Equal(t, 1, byID)
}

func TestResolveStoreIDWithoutRowKeepsDefaultName(t *testing.T) {
	dir := newDirectory()
	r := display.NewResolver(dir, defaultStoreName, zap.NewNop())

	res := r.Resolve(context.Background(), "orphan-store")

	require.True(t, res.Found)
	assert.Equal(t, "orphan-store", res.Store.ID)
	assert.Equal(t, defaultStoreName, res.Store.Name)
	assert.Empty(t, res.Cashiers)
}

func TestResolveNotFound(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		err  error
	}{
		{name: "unknown short code", ref: "87654321"},
		{name: "empty ref", ref: ""},
		{name: "directory down on short code", ref: "12345678", err: errors.New("connection refused")},
		{name: "directory down on id", ref: kopiKita.ID, err: errors.New("connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := newDirectory()
			dir.Err = tt.err
			r := display.NewResolver(dir, defaultStoreName, zap.NewNop())

			res := r.Resolve(context.Background(), tt.ref)

			assert.False(t, res.Found)
			assert.Equal(t, display.NotFoundName, res.Store.Name)
			assert.Empty(t, res.Cashiers)
		})
	}
}
