package badger_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	pkgerrors "github.com/absmach/fedcoord/pkg/errors"
	"github.com/absmach/fedcoord/pkg/storage"
	"github.com/absmach/fedcoord/pkg/storage/badger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDB *badger.Database

func TestMain(m *testing.M) {
	dbPath := filepath.Join(os.TempDir(), "badger_test_"+uuid.NewString())

	var err error
	testDB, err = badger.NewDatabase(dbPath)
	if err != nil {
		panic(err)
	}

	code := m.Run()

	testDB.Close()
	os.RemoveAll(dbPath)

	os.Exit(code)
}

func TestDatabaseReadWrite(t *testing.T) {
	ctx := context.Background()
	key := storage.LocalWeightsKey(uuid.NewString(), 3)
	require.NoError(t, testDB.Write(ctx, key, []byte{1, 2, 3}))

	cases := []struct {
		desc string
		key  string
		want []byte
		err  error
	}{
		{
			desc: "read existing blob",
			key:  key,
			want: []byte{1, 2, 3},
		},
		{
			desc: "read missing blob",
			key:  storage.GlobalWeightsKey(99),
			err:  pkgerrors.ErrNotFound,
		},
		{
			desc: "read empty key",
			key:  "",
			err:  pkgerrors.ErrEmptyKey,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			got, err := testDB.Read(ctx, tc.key)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDatabaseOverwrite(t *testing.T) {
	ctx := context.Background()
	key := storage.GlobalWeightsKey(1)

	require.NoError(t, testDB.Write(ctx, key, []byte("first")))
	require.NoError(t, testDB.Write(ctx, key, []byte("second")))

	got, err := testDB.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
}
