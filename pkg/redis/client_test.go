package redis

import (
	"context"
	"slices"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	c, err := NewClient(config.RedisConfig{Addr: mr.Addr(), PoolSize: 2})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestSetRoundTrip(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	if err := c.SetAdd(ctx, "uids", "CAbc1", "CXyz2", "CAbc1"); err != nil {
		t.Fatalf("SetAdd: %v", err)
	}
	members, err := c.SetMembers(ctx, "uids")
	if err != nil {
		t.Fatalf("SetMembers: %v", err)
	}
	slices.Sort(members)
	if !slices.Equal(members, []string{"CAbc1", "CXyz2"}) {
		t.Errorf("members = %v", members)
	}
	if ok, _ := mr.SIsMember("uids", "CXyz2"); !ok {
		t.Error("miniredis does not see CXyz2")
	}
}

func TestSetMembersMissingKey(t *testing.T) {
	c, _ := newTestClient(t)
	members, err := c.SetMembers(context.Background(), "absent")
	if err != nil {
		t.Fatalf("SetMembers: %v", err)
	}
	if len(members) != 0 {
		t.Errorf("expected empty set, got %v", members)
	}
}

func TestNewClientUnreachable(t *testing.T) {
	if _, err := NewClient(config.RedisConfig{Addr: "127.0.0.1:1"}); err == nil {
		t.Fatal("expected ping failure")
	}
}
