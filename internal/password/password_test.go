package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSHA256Hasher(t *testing.T) {
	h := SHA256Hasher{}

	hash, err := h.Hash("secret123")
	assert.NoError(t, err)
	assert.Equal(t, "fcf730b6d95236ecd3c9fc2d92d7b6b2bb061514961aec041d6c7a7192f592e4", hash)

	// детерминированность: одинаковый вход — одинаковый дайджест
	again, err := h.Hash("secret123")
	assert.NoError(t, err)
	assert.Equal(t, hash, again)

	assert.True(t, h.Verify("secret123", hash))
	assert.False(t, h.Verify("wrongpass", hash))
	assert.False(t, h.Verify("secret123", "not-a-digest"))
}

func TestBcryptHasher(t *testing.T) {
	if testing.Short() {
		t.Skip("пропускаем bcrypt в коротком режиме")
	}

	h := BcryptHasher{}

	hash, err := h.Hash("secret123")
	assert.NoError(t, err)
	assert.NotEqual(t, "secret123", hash)

	// соль: повторный хеш отличается, но оба проверяются
	other, err := h.Hash("secret123")
	assert.NoError(t, err)
	assert.NotEqual(t, hash, other)

	assert.True(t, h.Verify("secret123", hash))
	assert.True(t, h.Verify("secret123", other))
	assert.False(t, h.Verify("wrongpass", hash))
}
