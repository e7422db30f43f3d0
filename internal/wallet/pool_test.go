package wallet

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/frennadev/nitro-launch-bot-sub004/internal/cryptoutil"
)

const testSecret = "test-master-secret"

func newTestManager(t *testing.T) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewPostgresStore(db)
	return NewManager(store, testSecret, nil), mock
}

func TestManager_GenerateWallets_InsertsValidatingRecords(t *testing.T) {
	m, mock := newTestManager(t)

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO mixer_wallets")
	for i := 0; i < 3; i++ {
		mock.ExpectExec("INSERT INTO mixer_wallets").WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	wallets, err := m.GenerateWallets(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, wallets, 3)

	for _, w := range wallets {
		require.True(t, m.ValidateWalletDecryption(w), "freshly generated wallet must immediately pass validation (§8 round-trip law)")
		require.Equal(t, StatusAvailable, w.Status)
		require.Equal(t, int64(0), w.UsageCount)
	}

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestManager_ReserveWalletsForMixing_InsufficientPool(t *testing.T) {
	m, mock := newTestManager(t)

	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{
		"public_key", "private_key_cipher", "status", "is_active", "balance", "created_at",
		"last_used", "usage_count", "transaction_history", "error_message", "error_timestamp",
	})
	// Only one candidate returned though n=4 requested, and it fails trial
	// decryption — the store transitions it to error within the same tx,
	// leaving zero validated wallets.
	rows.AddRow("pk1", "deadbeef:deadbeef", string(StatusAvailable), true, int64(0), time.Now(),
		nil, int64(0), []byte("[]"), nil, nil)
	mock.ExpectQuery("SELECT public_key").WillReturnRows(rows)
	mock.ExpectExec("UPDATE mixer_wallets").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := m.ReserveWalletsForMixing(context.Background(), 4, nil)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestManager_ReleaseWallets_NoOpOnEmpty(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.ReleaseWallets(context.Background(), nil))
}

func TestManager_ValidateWalletDecryption_RejectsForeignCipher(t *testing.T) {
	m, _ := newTestManager(t)

	_, priv, err := cryptoutil.GenerateSecureKeypair()
	require.NoError(t, err)

	var iv [16]byte
	require.NoError(t, fillRandomIV(iv[:]))
	cipher, err := EncryptPrivateKey(priv, testSecret, iv)
	require.NoError(t, err)

	forged := StoredWallet{
		PublicKey:        "not-the-real-derived-key",
		PrivateKeyCipher: cipher,
	}
	require.False(t, m.ValidateWalletDecryption(forged))
}
