// Package engine wires the actor system that serializes social-graph
// mutations. A supervisor per entity kind spawns one actor per user or post
// id, so concurrent writes against the same document are applied one at a
// time while unrelated documents proceed in parallel.
package engine

import (
	"time"

	"perch/internal/database"
	"perch/internal/engine/actors"
	"perch/internal/utils"
	"perch/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
)

const requestTimeout = 10 * time.Second

// Engine coordinates communication between the supervisors.
type Engine struct {
	system         *actor.ActorSystem
	userSupervisor *actor.PID
	postSupervisor *actor.PID
}

func NewEngine(system *actor.ActorSystem, store database.Store, hub *websocket.Hub, metrics *utils.MetricsCollector) *Engine {
	context := system.Root
	notifier := actors.NewNotifier(store, hub)

	userProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewUserSupervisor(store, notifier, metrics)
	})
	userPID := context.Spawn(userProps)

	postProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewPostSupervisor(store, notifier, metrics)
	})
	postPID := context.Spawn(postProps)

	return &Engine{
		system:         system,
		userSupervisor: userPID,
		postSupervisor: postPID,
	}
}

// RequestUser sends a message to the user supervisor and waits for the
// result. An *utils.AppError response is returned as the error.
func (e *Engine) RequestUser(msg interface{}) (interface{}, error) {
	return e.request(e.userSupervisor, msg)
}

// RequestPost sends a message to the post supervisor and waits for the result.
func (e *Engine) RequestPost(msg interface{}) (interface{}, error) {
	return e.request(e.postSupervisor, msg)
}

func (e *Engine) request(pid *actor.PID, msg interface{}) (interface{}, error) {
	future := e.system.Root.RequestFuture(pid, msg, requestTimeout)
	result, err := future.Result()
	if err != nil {
		return nil, utils.NewAppError(utils.ErrActorTimeout, "Request timed out", err)
	}
	if appErr, ok := result.(*utils.AppError); ok {
		return nil, appErr
	}
	return result, nil
}
