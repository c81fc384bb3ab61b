package v1

import (
	"canvas-studio-backend/internal/canvas/session"
	"canvas-studio-backend/internal/libraries"

	"github.com/gofiber/fiber/v2"
)

func registerWebSocket(r fiber.Router, svc Services) {
	// a client subscribing to an open project gets the current document right away
	onSubscribe := func(client *libraries.Client, projectID string) {
		s, ok := svc.Sessions.Lookup(projectID)
		if !ok {
			return
		}
		snap := s.Store.Snapshot()
		libraries.SendEvent(svc.Hub, client, libraries.WebSocketMessageTypeShapes, session.ShapesEvent{
			ProjectID: projectID,
			Version:   snap.Version,
			Shapes:    snap.Shapes,
		})
		libraries.SendEvent(svc.Hub, client, libraries.WebSocketMessageTypeSaveStatus, session.SaveStatusEvent{
			ProjectID: projectID,
			State:     s.Sync.Status(),
		})
		if n := svc.Sessions.Slot().Current(); n != nil {
			libraries.SendEvent(svc.Hub, client, libraries.WebSocketMessageTypeErrorNotice, n)
		}
	}

	r.Get("/ws", libraries.WebSocketHandler(svc.Hub, onSubscribe))
}
