package social

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/watchlog/internal/model"
	"github.com/hitoshi/watchlog/internal/repository"
)

// --- モック ---

type mockFollowRepo struct {
	createFn        func(ctx context.Context, edge *model.FollowEdge) error
	deleteFn        func(ctx context.Context, followerID, followedID string) error
	listFollowersFn func(ctx context.Context, userID string) ([]*model.User, error)
	listFollowingFn func(ctx context.Context, userID string) ([]*model.User, error)
}

func (m *mockFollowRepo) Create(ctx context.Context, edge *model.FollowEdge) error {
	return m.createFn(ctx, edge)
}
func (m *mockFollowRepo) Delete(ctx context.Context, followerID, followedID string) error {
	return m.deleteFn(ctx, followerID, followedID)
}
func (m *mockFollowRepo) ListFollowers(ctx context.Context, userID string) ([]*model.User, error) {
	return m.listFollowersFn(ctx, userID)
}
func (m *mockFollowRepo) ListFollowing(ctx context.Context, userID string) ([]*model.User, error) {
	return m.listFollowingFn(ctx, userID)
}
func (m *mockFollowRepo) CountFollowers(ctx context.Context, userID string) (int, error) {
	return 0, nil
}
func (m *mockFollowRepo) CountFollowing(ctx context.Context, userID string) (int, error) {
	return 0, nil
}

type mockUserRepo struct {
	findByIDFn func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return &model.User{ID: id}, nil
}
func (m *mockUserRepo) ListByCreation(ctx context.Context, limit int) ([]*model.User, error) {
	return nil, nil
}

// TestFollow はフォローエッジの作成をテストする。
func TestFollow(t *testing.T) {
	var created *model.FollowEdge
	followRepo := &mockFollowRepo{
		createFn: func(ctx context.Context, edge *model.FollowEdge) error {
			created = edge
			return nil
		},
	}
	svc := NewService(followRepo, &mockUserRepo{})

	if err := svc.Follow(context.Background(), "user-a", "user-b"); err != nil {
		t.Fatalf("Follow() returned error: %v", err)
	}
	if created == nil {
		t.Fatal("edge was not persisted")
	}
	if created.FollowerID != "user-a" || created.FollowedID != "user-b" {
		t.Errorf("edge = (%s, %s), want (user-a, user-b)", created.FollowerID, created.FollowedID)
	}
}

// TestFollow_SelfFollow は自己フォローの拒否をテストする。
func TestFollow_SelfFollow(t *testing.T) {
	followRepo := &mockFollowRepo{
		createFn: func(ctx context.Context, edge *model.FollowEdge) error {
			t.Error("Create should not be called for self-follow")
			return nil
		},
	}
	svc := NewService(followRepo, &mockUserRepo{})

	err := svc.Follow(context.Background(), "user-a", "user-a")
	if err == nil {
		t.Fatal("expected error for self-follow, got nil")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeSelfFollow {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeSelfFollow)
	}
}

// TestFollow_DuplicateIsNoOp は重複フォローが成功扱いになることをテストする（冪等）。
func TestFollow_DuplicateIsNoOp(t *testing.T) {
	followRepo := &mockFollowRepo{
		createFn: func(ctx context.Context, edge *model.FollowEdge) error {
			return repository.ErrConflict
		},
	}
	svc := NewService(followRepo, &mockUserRepo{})

	if err := svc.Follow(context.Background(), "user-a", "user-b"); err != nil {
		t.Fatalf("duplicate Follow() should succeed, got error: %v", err)
	}
}

// TestFollow_TargetNotFound は存在しないユーザーへのフォローでUSER_NOT_FOUNDが返ることをテストする。
func TestFollow_TargetNotFound(t *testing.T) {
	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return nil, nil
		},
	}
	followRepo := &mockFollowRepo{
		createFn: func(ctx context.Context, edge *model.FollowEdge) error {
			t.Error("Create should not be called for missing target")
			return nil
		},
	}
	svc := NewService(followRepo, userRepo)

	err := svc.Follow(context.Background(), "user-a", "missing")
	if err == nil {
		t.Fatal("expected error for missing target, got nil")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeUserNotFound {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeUserNotFound)
	}
}

// TestUnfollow はフォロー解除をテストする。
func TestUnfollow(t *testing.T) {
	deleted := false
	followRepo := &mockFollowRepo{
		deleteFn: func(ctx context.Context, followerID, followedID string) error {
			if followerID != "user-a" || followedID != "user-b" {
				t.Errorf("delete = (%s, %s), want (user-a, user-b)", followerID, followedID)
			}
			deleted = true
			return nil
		},
	}
	svc := NewService(followRepo, &mockUserRepo{})

	if err := svc.Unfollow(context.Background(), "user-a", "user-b"); err != nil {
		t.Fatalf("Unfollow() returned error: %v", err)
	}
	if !deleted {
		t.Error("edge was not deleted")
	}
}

// TestUnfollow_MissingEdgeIsNoOp は未フォロー状態の解除が成功することをテストする（冪等）。
func TestUnfollow_MissingEdgeIsNoOp(t *testing.T) {
	followRepo := &mockFollowRepo{
		deleteFn: func(ctx context.Context, followerID, followedID string) error {
			// リポジトリは存在しないエッジの削除をエラーにしない
			return nil
		},
	}
	svc := NewService(followRepo, &mockUserRepo{})

	if err := svc.Unfollow(context.Background(), "user-a", "stranger"); err != nil {
		t.Fatalf("Unfollow() of missing edge should succeed, got error: %v", err)
	}
}

// TestListFollowers はフォロワー一覧が公開プロフィールで返ることをテストする。
func TestListFollowers(t *testing.T) {
	followRepo := &mockFollowRepo{
		listFollowersFn: func(ctx context.Context, userID string) ([]*model.User, error) {
			return []*model.User{
				{ID: "user-b", Email: "b@example.com", Username: "bob", DisplayName: "Bob"},
				{ID: "user-c", Email: "c@example.com", Username: "carol", DisplayName: "Carol"},
			}, nil
		},
	}
	svc := NewService(followRepo, &mockUserRepo{})

	profiles, err := svc.ListFollowers(context.Background(), "user-a")
	if err != nil {
		t.Fatalf("ListFollowers() returned error: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("len = %d, want 2", len(profiles))
	}
	// エッジ作成日時の昇順（リポジトリの順序が保持される）
	if profiles[0].Username != "bob" || profiles[1].Username != "carol" {
		t.Errorf("order = [%s %s], want [bob carol]", profiles[0].Username, profiles[1].Username)
	}
}

// TestListFollowing はフォロー一覧が公開プロフィールで返ることをテストする。
func TestListFollowing(t *testing.T) {
	followRepo := &mockFollowRepo{
		listFollowingFn: func(ctx context.Context, userID string) ([]*model.User, error) {
			return []*model.User{
				{ID: "user-d", Email: "d@example.com", Username: "dave"},
			}, nil
		},
	}
	svc := NewService(followRepo, &mockUserRepo{})

	profiles, err := svc.ListFollowing(context.Background(), "user-a")
	if err != nil {
		t.Fatalf("ListFollowing() returned error: %v", err)
	}
	if len(profiles) != 1 {
		t.Fatalf("len = %d, want 1", len(profiles))
	}
	if profiles[0].Username != "dave" {
		t.Errorf("Username = %q, want %q", profiles[0].Username, "dave")
	}
}
