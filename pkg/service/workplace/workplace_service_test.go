package workplace

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
)

type stubRepo struct {
	names map[string]string
	err   error
	calls int
}

func (r *stubRepo) FindNameByID(_ context.Context, id string) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	name, ok := r.names[id]
	if !ok {
		return "", constant.ErrNotFound
	}
	return name, nil
}

func TestSanitizeFolder(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Downtown Store", "Downtown_Store"},
		{"  中心药房 #3 ", "中心药房_3"},
		{"../../etc", "etc"},
		{"a/b\\c", "abc"},
		{"___", ""},
		{"store-01", "store-01"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFolder(tt.in))
		})
	}
}

func TestFolderName(t *testing.T) {
	ctx := context.Background()
	repo := &stubRepo{names: map[string]string{"wp-1": "North Branch", "wp-2": "///"}}
	svc := NewService(repo)

	assert.Equal(t, "North_Branch", svc.FolderName(ctx, "wp-1"))
	assert.Equal(t, "wp-2", svc.FolderName(ctx, "wp-2"))
	assert.Equal(t, "wp-9", svc.FolderName(ctx, "wp-9"))
	assert.Equal(t, constant.DefaultSharedFolder, svc.FolderName(ctx, "../"))
}

func TestFolderNameFallsBackOnRepoError(t *testing.T) {
	svc := NewService(&stubRepo{err: errors.New("db down")})
	assert.Equal(t, "wp-1", svc.FolderName(context.Background(), "wp-1"))
}

func TestNameIsCached(t *testing.T) {
	ctx := context.Background()
	repo := &stubRepo{names: map[string]string{"wp-1": "North"}}
	svc := NewServiceWithCache(repo, 16, time.Minute)

	for i := 0; i < 3; i++ {
		name, err := svc.Name(ctx, "wp-1")
		require.NoError(t, err)
		assert.Equal(t, "North", name)
	}
	assert.Equal(t, 1, repo.calls)

	_, err := svc.Name(ctx, "missing")
	assert.ErrorIs(t, err, constant.ErrNotFound)
}
