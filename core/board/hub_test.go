package board

import (
	"encoding/json"
	"testing"
	"time"

	"DemoCrate/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesOrgClients(t *testing.T) {
	h := NewHub()
	go h.Run()
	defer h.Stop()

	client := &Client{Hub: h, Send: make(chan []byte, 4), OrgID: 1, StaffID: 10}
	h.Register(client)
	require.Eventually(t, func() bool {
		return h.GetOrgClientCount(1) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// 别的厂牌看板收不到
	other := &Client{Hub: h, Send: make(chan []byte, 4), OrgID: 2, StaffID: 20}
	h.Register(other)
	require.Eventually(t, func() bool {
		return h.GetOrgClientCount(2) == 1
	}, 2*time.Second, 10*time.Millisecond)

	h.Publish(&Event{
		Type:  EvtTrackMoved,
		OrgID: 1,
		Track: &model.DemoTrack{ID: 7, Phase: model.PhaseTeamReview},
	})

	select {
	case data := <-client.Send:
		var evt Event
		require.NoError(t, json.Unmarshal(data, &evt))
		assert.Equal(t, EvtTrackMoved, evt.Type)
		assert.Equal(t, int64(7), evt.Track.ID)
		assert.NotZero(t, evt.Timestamp)
	case <-time.After(2 * time.Second):
		t.Fatal("event never reached the org's client")
	}

	select {
	case <-other.Send:
		t.Fatal("event leaked to another org's client")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBroadcastToFullClientDoesNotWedgeHub(t *testing.T) {
	h := NewHub()
	go h.Run()
	defer h.Stop()

	// 无缓冲 Send 且没有 WritePump 在读：广播必然发不进去
	stuck := &Client{Hub: h, Send: make(chan []byte), OrgID: 1, StaffID: 10}
	h.Register(stuck)
	require.Eventually(t, func() bool {
		return h.GetOrgClientCount(1) == 1
	}, 2*time.Second, 10*time.Millisecond)

	h.Publish(&Event{Type: EvtVoteCast, OrgID: 1})

	// 发不进去的客户端被摘除，主循环必须还活着，后续注册照常处理
	registered := make(chan struct{})
	go func() {
		h.Register(&Client{Hub: h, Send: make(chan []byte, 4), OrgID: 1, StaffID: 11})
		close(registered)
	}()

	select {
	case <-registered:
	case <-time.After(2 * time.Second):
		t.Fatal("hub main loop stopped processing after broadcasting to a full client")
	}

	require.Eventually(t, func() bool {
		return h.GetOrgClientCount(1) == 1
	}, 2*time.Second, 10*time.Millisecond, "full client should have been evicted")
}

func TestRegisterReplacesDuplicateStaffConnection(t *testing.T) {
	h := NewHub()
	go h.Run()
	defer h.Stop()

	first := &Client{Hub: h, Send: make(chan []byte, 4), OrgID: 1, StaffID: 10}
	h.Register(first)
	require.Eventually(t, func() bool {
		return h.GetOrgClientCount(1) == 1
	}, 2*time.Second, 10*time.Millisecond)

	second := &Client{Hub: h, Send: make(chan []byte, 4), OrgID: 1, StaffID: 10}
	h.Register(second)

	// 同一员工重开看板：旧连接被踢掉（Send 被关闭），计数不翻倍
	require.Eventually(t, func() bool {
		select {
		case _, open := <-first.Send:
			return !open && h.GetOrgClientCount(1) == 1
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
