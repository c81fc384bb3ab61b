package libraries

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://storage.googleapis.com/assets/canvas/p1/thumb.png", PublicURL("assets", "canvas/p1/thumb.png"))
	assert.Equal(t, "https://storage.googleapis.com/assets/a%20b.png", PublicURL("assets", "a b.png"))
}

func TestObjectPath(t *testing.T) {
	a := &AssetStorage{Prefix: "canvas"}
	assert.Equal(t, "canvas/p1/x.png", a.objectPath("p1/x.png"))
	a.Prefix = ""
	assert.Equal(t, "p1/x.png", a.objectPath("p1/x.png"))
}

func TestNewAssetStorageNeedsConfig(t *testing.T) {
	_, err := NewAssetStorage(context.Background(), "", "bucket")
	assert.Error(t, err)
	_, err = NewAssetStorage(context.Background(), "e30=", "")
	assert.Error(t, err)
	_, err = NewAssetStorage(context.Background(), "%%%", "bucket")
	assert.Error(t, err)
}
