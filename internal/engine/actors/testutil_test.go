package actors

import (
	"testing"
	"time"

	"perch/internal/database"
	"perch/internal/models"
	"perch/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newID() uuid.UUID {
	return uuid.New()
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// testRig spawns both supervisors over an in-memory store.
type testRig struct {
	system  *actor.ActorSystem
	store   *database.Memory
	userPID *actor.PID
	postPID *actor.PID
}

func newTestRig() *testRig {
	system := actor.NewActorSystem()
	store := database.NewMemory()
	metrics := utils.NewMetricsCollector()
	notifier := NewNotifier(store, nil)

	userProps := actor.PropsFromProducer(func() actor.Actor {
		return NewUserSupervisor(store, notifier, metrics)
	})
	postProps := actor.PropsFromProducer(func() actor.Actor {
		return NewPostSupervisor(store, notifier, metrics)
	})

	return &testRig{
		system:  system,
		store:   store,
		userPID: system.Root.Spawn(userProps),
		postPID: system.Root.Spawn(postProps),
	}
}

func (r *testRig) request(t *testing.T, pid *actor.PID, msg interface{}) interface{} {
	t.Helper()
	future := r.system.Root.RequestFuture(pid, msg, 5*time.Second)
	result, err := future.Result()
	require.NoError(t, err)
	return result
}

// requestError asserts the actor responded with an AppError of the given code.
func (r *testRig) requestError(t *testing.T, pid *actor.PID, msg interface{}, code string) *utils.AppError {
	t.Helper()
	result := r.request(t, pid, msg)
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok, "expected AppError, got %T", result)
	require.Equal(t, code, appErr.Code)
	return appErr
}

func (r *testRig) registerUser(t *testing.T, username, mobileNo string) *models.User {
	t.Helper()
	result := r.request(t, r.userPID, &RegisterUserMsg{
		Name:     "Test " + username,
		Username: username,
		MobileNo: mobileNo,
		Password: "secret123",
	})
	user, ok := result.(*models.User)
	require.True(t, ok, "expected *models.User, got %#v", result)
	return user
}

func (r *testRig) createPost(t *testing.T, author *models.User, content string) *models.Post {
	t.Helper()
	result := r.request(t, r.postPID, &CreatePostMsg{
		AuthorID: author.ID,
		Content:  content,
	})
	post, ok := result.(*models.Post)
	require.True(t, ok, "expected *models.Post, got %#v", result)
	return post
}

func (r *testRig) addComment(t *testing.T, post *models.Post, author *models.User, body string) *models.Comment {
	t.Helper()
	result := r.request(t, r.postPID, &AddCommentMsg{
		PostID:   post.ID,
		AuthorID: author.ID,
		Body:     body,
	})
	comment, ok := result.(*models.Comment)
	require.True(t, ok, "expected *models.Comment, got %#v", result)
	return comment
}
