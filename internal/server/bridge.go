package server

import (
	"context"

	"github.com/lotas/tabgruppen/internal/browser"
	"github.com/lotas/tabgruppen/internal/types"
)

var _ browser.API = (*Server)(nil)

// GetTab implements browser.API.
func (s *Server) GetTab(ctx context.Context, tabID int) (*types.Tab, error) {
	r, err := s.call(ctx, OutgoingMsg{Action: "getTab", TabID: tabID}, s.timeout)
	if err != nil {
		return nil, err
	}
	return ParseTab(r.Tab)
}

// QueryTabs implements browser.API.
func (s *Server) QueryTabs(ctx context.Context, windowID int) ([]*types.Tab, error) {
	r, err := s.call(ctx, OutgoingMsg{Action: "queryTabs", WindowID: windowID}, s.timeout)
	if err != nil {
		return nil, err
	}
	return ParseTabs(r.Tabs)
}

// GroupTabs implements browser.API. The extension creates a new group when
// no groupId is sent.
func (s *Server) GroupTabs(ctx context.Context, tabIDs []int, groupID int) (int, error) {
	msg := OutgoingMsg{Action: "groupTabs", TabIDs: tabIDs}
	if groupID != types.NoGroup {
		msg.GroupID = groupID
	}
	r, err := s.call(ctx, msg, s.timeout)
	if err != nil {
		return 0, err
	}
	return r.GroupID, nil
}

// UngroupTabs implements browser.API.
func (s *Server) UngroupTabs(ctx context.Context, tabIDs []int) error {
	_, err := s.call(ctx, OutgoingMsg{Action: "ungroupTabs", TabIDs: tabIDs}, s.timeout)
	return err
}

// UpdateGroup implements browser.API.
func (s *Server) UpdateGroup(ctx context.Context, groupID int, upd browser.GroupUpdate) error {
	_, err := s.call(ctx, OutgoingMsg{Action: "updateGroup", GroupID: groupID, Update: &upd}, s.timeout)
	return err
}

// ActivateTab implements browser.API.
func (s *Server) ActivateTab(ctx context.Context, tabID int) error {
	_, err := s.call(ctx, OutgoingMsg{Action: "activateTab", TabID: tabID}, s.timeout)
	return err
}

// FocusWindow implements browser.API.
func (s *Server) FocusWindow(ctx context.Context, windowID int) error {
	_, err := s.call(ctx, OutgoingMsg{Action: "focusWindow", WindowID: windowID}, s.timeout)
	return err
}

// ReloadTab implements browser.API.
func (s *Server) ReloadTab(ctx context.Context, tabID int) error {
	_, err := s.call(ctx, OutgoingMsg{Action: "reloadTab", TabID: tabID}, s.timeout)
	return err
}

// RemoveTab implements browser.API.
func (s *Server) RemoveTab(ctx context.Context, tabID int) error {
	_, err := s.call(ctx, OutgoingMsg{Action: "removeTab", TabID: tabID}, s.timeout)
	return err
}

// CreateTab implements browser.API.
func (s *Server) CreateTab(ctx context.Context, url string, windowID int) (*types.Tab, error) {
	r, err := s.call(ctx, OutgoingMsg{Action: "createTab", URL: url, WindowID: windowID}, s.timeout)
	if err != nil {
		return nil, err
	}
	if len(r.Tab) == 0 {
		return nil, nil
	}
	return ParseTab(r.Tab)
}

// AskGroupName implements browser.API. The prompt waits for the user, so it
// gets a much longer timeout than other commands.
func (s *Server) AskGroupName(ctx context.Context, tabID int, defaultName string) (*string, error) {
	r, err := s.call(ctx, OutgoingMsg{Action: "askGroupName", TabID: tabID, Name: defaultName}, s.askTimeout)
	if err != nil {
		return nil, err
	}
	return r.Name, nil
}

// Notify implements browser.API.
func (s *Server) Notify(ctx context.Context, n browser.Notification) error {
	_, err := s.call(ctx, OutgoingMsg{Action: "notify", Title: n.Title, Message: n.Message, Undo: n.Undo}, s.timeout)
	return err
}
