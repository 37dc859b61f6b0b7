package fs

import (
	"context"
	"testing"

	"github.com/babelmesh/lingua/model/intent"
	"github.com/babelmesh/lingua/model/task"
	"github.com/babelmesh/lingua/service/dao"
	"github.com/stretchr/testify/assert"
	"github.com/viant/afs"
	_ "github.com/viant/afs/mem"
)

func TestService(t *testing.T) {
	store := New(afs.New(), "mem://localhost/tasks")
	ctx := context.Background()

	aTask := task.New("t1", &task.Input{Text: "hola"}, intent.TranslateSpeech)
	_ = aTask.AttachPlan([]string{"translate", "text2speech"})
	assert.NoError(t, store.Save(ctx, aTask))

	loaded, err := store.Load(ctx, "t1")
	assert.NoError(t, err)
	assert.Equal(t, "t1", loaded.ID)
	assert.Equal(t, task.StateRunning, loaded.State)
	assert.Len(t, loaded.Steps, 2)

	all, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Len(t, all, 1)

	assert.NoError(t, store.Delete(ctx, "t1"))
	_, err = store.Load(ctx, "t1")
	assert.ErrorIs(t, err, dao.ErrNotFound)
}
