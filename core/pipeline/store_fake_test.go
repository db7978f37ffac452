package pipeline

import (
	"context"
	"fmt"
	"time"

	"DemoCrate/model"
)

// fakeStore 引擎测试用的内存存储，行为对齐 Store 契约
type fakeStore struct {
	tracks        map[int64]*model.DemoTrack
	votes         map[int64]map[int64]int // trackID -> staffID -> value
	requireReason map[int64]bool          // orgID -> 设置

	updateCalls int
}

func newFakeStore(tracks ...*model.DemoTrack) *fakeStore {
	s := &fakeStore{
		tracks:        make(map[int64]*model.DemoTrack),
		votes:         make(map[int64]map[int64]int),
		requireReason: make(map[int64]bool),
	}
	for _, t := range tracks {
		s.tracks[t.ID] = t
	}
	return s
}

func (s *fakeStore) GetTrack(_ context.Context, id int64) (*model.DemoTrack, error) {
	t, ok := s.tracks[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s *fakeStore) UpdateTrack(_ context.Context, id, expectedVersion int64, fields map[string]interface{}) (*model.DemoTrack, error) {
	s.updateCalls++

	t, ok := s.tracks[id]
	if !ok {
		return nil, fmt.Errorf("track %d not found", id)
	}
	if t.Version != expectedVersion {
		return nil, ErrVersionConflict
	}

	for col, v := range fields {
		switch col {
		case "phase":
			t.Phase = v.(string)
		case "archived":
			t.Archived = v.(bool)
		case "rejection_reason":
			t.RejectionReason = v.(string)
		case "contract_signed":
			t.ContractSigned = v.(bool)
		case "release_date":
			d := v.(time.Time)
			t.ReleaseDate = &d
		case "target_release_date":
			d := v.(time.Time)
			t.TargetReleaseDate = &d
		default:
			return nil, fmt.Errorf("unexpected column %q", col)
		}
	}
	t.Version++

	cp := *t
	return &cp, nil
}

func (s *fakeStore) UpsertVote(_ context.Context, trackID, staffID int64, value int) (int, error) {
	if s.votes[trackID] == nil {
		s.votes[trackID] = make(map[int64]int)
	}
	s.votes[trackID][staffID] = value

	total := 0
	for _, v := range s.votes[trackID] {
		total += v
	}
	if t, ok := s.tracks[trackID]; ok {
		t.Votes = total
	}
	return total, nil
}

func (s *fakeStore) RequireRejectionReason(_ context.Context, orgID int64) (bool, error) {
	return s.requireReason[orgID], nil
}

// ---- 测试数据构造 ----

func trackIn(phase Phase) *model.DemoTrack {
	return &model.DemoTrack{
		ID:         1,
		PublicID:   "0f1e2d3c",
		OrgID:      1,
		ArtistName: "Nightdrive",
		Title:      "Neon Tide",
		Phase:      phase.String(),
		Version:    3,
	}
}

func ownerActor() Actor {
	return Actor{StaffID: 10, Name: "ada", Role: model.RoleOwner}
}

func managerActor() Actor {
	return Actor{StaffID: 11, Name: "ben", Role: model.RoleManager}
}

func scoutActor() Actor {
	return Actor{StaffID: 12, Name: "cleo", Role: model.RoleScout}
}

func adminActor() Actor {
	return Actor{StaffID: 13, Name: "root", Role: model.RoleSystemAdmin}
}
