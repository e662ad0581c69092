package prefs

import (
	"context"
	"sync"
	"testing"

	"github.com/Astra2544/weingut-storefront/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	m    sync.RWMutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return v, nil
}

func (m *memStore) Put(_ context.Context, key string, value []byte) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memStore) Close() error { return nil }

func TestLanguage_DefaultWhenUnset(t *testing.T) {
	p := New(newMemStore(), LanguageGerman, nil)
	assert.Equal(t, "de", p.Language(context.Background()))
}

func TestLanguage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	p := New(newMemStore(), LanguageGerman, nil)

	require.NoError(t, p.SetLanguage(ctx, LanguageEnglish))
	assert.Equal(t, "en", p.Language(ctx))
}

func TestSetLanguage_RejectsUnknown(t *testing.T) {
	p := New(newMemStore(), LanguageGerman, nil)
	assert.ErrorIs(t, p.SetLanguage(context.Background(), "fr"), ErrUnknownLanguage)
}

func TestLanguage_GarbageValueFallsBack(t *testing.T) {
	ctx := context.Background()
	local := newMemStore()
	require.NoError(t, storage.PutJSON(ctx, local, storage.KeyLanguage, "xx"))

	p := New(local, LanguageEnglish, nil)
	assert.Equal(t, "en", p.Language(ctx))
}

func TestCookieConsent_UndecidedByDefault(t *testing.T) {
	p := New(newMemStore(), LanguageGerman, nil)
	accepted, decided := p.CookieConsent(context.Background())
	assert.False(t, decided)
	assert.False(t, accepted)
}

func TestCookieConsent_RoundTrip(t *testing.T) {
	ctx := context.Background()
	p := New(newMemStore(), LanguageGerman, nil)

	require.NoError(t, p.SetCookieConsent(ctx, true))
	accepted, decided := p.CookieConsent(ctx)
	assert.True(t, decided)
	assert.True(t, accepted)
}
