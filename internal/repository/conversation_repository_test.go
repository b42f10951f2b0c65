package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fidest-ci/kivou-backend/internal/model"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB opens a throwaway sqlite database with the same gorm options
// the MySQL connection uses, notably TranslateError, so unique index
// violations surface as gorm.ErrDuplicatedKey here too.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "chat.db") + "?_pragma=busy_timeout(10000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	if err := db.AutoMigrate(&model.Conversation{}, &model.Message{}); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return db
}

func TestFindOrCreateReturnsExistingRow(t *testing.T) {
	db := openTestDB(t)
	repo := NewConversationRepository(db)
	ctx := context.Background()

	first, err := repo.FindOrCreate(ctx, 1, 2, model.NoProvider)
	if err != nil {
		t.Fatalf("first FindOrCreate: %v", err)
	}
	again, err := repo.FindOrCreate(ctx, 1, 2, model.NoProvider)
	if err != nil {
		t.Fatalf("second FindOrCreate: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("got id %d, want existing %d", again.ID, first.ID)
	}

	withProvider, err := repo.FindOrCreate(ctx, 1, 2, 7)
	if err != nil {
		t.Fatalf("FindOrCreate with provider: %v", err)
	}
	if withProvider.ID == first.ID {
		t.Fatal("provider context must get its own conversation")
	}

	var cnt int64
	if err := db.Model(&model.Conversation{}).Count(&cnt).Error; err != nil {
		t.Fatalf("counting rows: %v", err)
	}
	if cnt != 2 {
		t.Fatalf("rows = %d, want 2", cnt)
	}
}

func TestFindOrCreateLosesCreateRace(t *testing.T) {
	db := openTestDB(t)
	repo := NewConversationRepository(db)
	ctx := context.Background()

	// Interleave a competing insert between the not-found check and the
	// create, the way a second request can win the race on the unique
	// index. The insert goes through Exec so it skips this callback.
	seeded := false
	err := db.Callback().Create().Before("gorm:create").Register("competing_open", func(tx *gorm.DB) {
		if seeded {
			return
		}
		seeded = true
		now := time.Now()
		if err := db.Exec(
			"INSERT INTO chat_conversations (user_a_id, user_b_id, provider_id, last_message, unread_a, unread_b, created_at, updated_at) VALUES (?, ?, ?, '', 0, 0, ?, ?)",
			1, 2, model.NoProvider, now, now,
		).Error; err != nil {
			t.Errorf("competing insert: %v", err)
		}
	})
	if err != nil {
		t.Fatalf("registering callback: %v", err)
	}

	cv, err := repo.FindOrCreate(ctx, 1, 2, model.NoProvider)
	if err != nil {
		t.Fatalf("FindOrCreate after losing the race: %v", err)
	}
	if !seeded {
		t.Fatal("competing insert never ran")
	}

	var winnerID uint64
	if err := db.Raw(
		"SELECT id FROM chat_conversations WHERE user_a_id = 1 AND user_b_id = 2 AND provider_id = ?",
		model.NoProvider,
	).Scan(&winnerID).Error; err != nil {
		t.Fatalf("reading winner: %v", err)
	}
	if cv.ID != winnerID {
		t.Fatalf("got id %d, want the winner's row %d", cv.ID, winnerID)
	}

	var cnt int64
	if err := db.Model(&model.Conversation{}).Count(&cnt).Error; err != nil {
		t.Fatalf("counting rows: %v", err)
	}
	if cnt != 1 {
		t.Fatalf("rows = %d, want 1", cnt)
	}
}

func TestCreateMessageProjectsSummary(t *testing.T) {
	db := openTestDB(t)
	repo := NewConversationRepository(db)
	ctx := context.Background()

	cv, err := repo.FindOrCreate(ctx, 1, 2, model.NoProvider)
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}

	send := func(from, to uint64, body string) {
		t.Helper()
		msg := &model.Message{
			ConversationID: cv.ID,
			FromUserID:     from,
			ToUserID:       to,
			Body:           body,
			CreatedAt:      time.Now(),
		}
		if err := repo.CreateMessage(ctx, msg, body); err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
	}

	send(2, 1, "bonjour")
	send(2, 1, "ça va ?")

	got, err := repo.FindByID(ctx, cv.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.UnreadA != 2 || got.UnreadB != 0 {
		t.Fatalf("unread = (%d, %d), want (2, 0)", got.UnreadA, got.UnreadB)
	}
	if got.LastMessage != "ça va ?" {
		t.Fatalf("last_message = %q, want the latest body", got.LastMessage)
	}
	if got.LastAt == nil {
		t.Fatal("last_at not set")
	}

	if err := repo.MarkRead(ctx, cv.ID, 1); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	send(1, 2, "bien et toi")

	got, err = repo.FindByID(ctx, cv.ID)
	if err != nil {
		t.Fatalf("FindByID after reply: %v", err)
	}
	if got.UnreadA != 0 || got.UnreadB != 1 {
		t.Fatalf("unread = (%d, %d), want (0, 1)", got.UnreadA, got.UnreadB)
	}
}

func TestCreateMessageUnknownConversation(t *testing.T) {
	db := openTestDB(t)
	repo := NewConversationRepository(db)

	msg := &model.Message{ConversationID: 999, FromUserID: 1, ToUserID: 2, Body: "x", CreatedAt: time.Now()}
	err := repo.CreateMessage(context.Background(), msg, "x")
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("err = %v, want gorm.ErrRecordNotFound", err)
	}
}

func TestFindByUserOrdersByActivity(t *testing.T) {
	db := openTestDB(t)
	repo := NewConversationRepository(db)
	ctx := context.Background()

	first, err := repo.FindOrCreate(ctx, 1, 2, model.NoProvider)
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	second, err := repo.FindOrCreate(ctx, 1, 3, model.NoProvider)
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}

	// No messages yet: newest conversation first, id breaking the tie.
	list, err := repo.FindByUser(ctx, 1)
	if err != nil {
		t.Fatalf("FindByUser: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID {
		t.Fatalf("expected conversation %d first, got %+v", second.ID, ids(list))
	}

	msg := &model.Message{
		ConversationID: first.ID,
		FromUserID:     2,
		ToUserID:       1,
		Body:           "salut",
		CreatedAt:      time.Now().Add(time.Second),
	}
	if err := repo.CreateMessage(ctx, msg, "salut"); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	list, err = repo.FindByUser(ctx, 1)
	if err != nil {
		t.Fatalf("FindByUser after message: %v", err)
	}
	if len(list) != 2 || list[0].ID != first.ID {
		t.Fatalf("expected conversation %d first after activity, got %+v", first.ID, ids(list))
	}
}

func ids(list []model.Conversation) []uint64 {
	out := make([]uint64, len(list))
	for i, cv := range list {
		out[i] = cv.ID
	}
	return out
}

func TestSetDBMidTraffic(t *testing.T) {
	db := openTestDB(t)
	repo := NewConversationRepository(nil)
	ctx := context.Background()

	if _, err := repo.FindOrCreate(ctx, 1, 2, model.NoProvider); !errors.Is(err, ErrDBNotReady) {
		t.Fatalf("err = %v, want ErrDBNotReady before attach", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.FindOrCreate(ctx, 1, 2, model.NoProvider)
			if err != nil && !errors.Is(err, ErrDBNotReady) {
				t.Errorf("FindOrCreate: %v", err)
			}
		}()
	}
	repo.SetDB(db)
	wg.Wait()

	cv, err := repo.FindOrCreate(ctx, 1, 2, model.NoProvider)
	if err != nil {
		t.Fatalf("FindOrCreate after attach: %v", err)
	}
	if cv.ID == 0 {
		t.Fatal("expected a persisted conversation")
	}
}
