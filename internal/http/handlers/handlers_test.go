package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/azatarm-prog/telegive-bot-service/internal/domain"
	"github.com/azatarm-prog/telegive-bot-service/internal/engine"
	"github.com/azatarm-prog/telegive-bot-service/internal/repo"
	"github.com/azatarm-prog/telegive-bot-service/internal/telegram"
)

// ---------- fakes ----------

type fakeQueue struct {
	single []engine.SingleRequest
	batch  []engine.BatchRequest
	err    error
}

func (f *fakeQueue) EnqueueMessage(_ context.Context, req engine.SingleRequest) (*domain.DeliveryTask, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.single = append(f.single, req)
	due := time.Now().UTC()
	return &domain.DeliveryTask{
		ID:            uuid.NewString(),
		RecipientID:   req.RecipientID,
		MessageType:   req.MessageType,
		Text:          req.Content.Text,
		Status:        domain.StatusPending,
		NextAttemptAt: &due,
	}, nil
}

func (f *fakeQueue) EnqueueBatch(_ context.Context, req engine.BatchRequest) (string, int, error) {
	if f.err != nil {
		return "", 0, f.err
	}
	f.batch = append(f.batch, req)
	return uuid.NewString(), len(req.Recipients), nil
}

type fakeIngester struct {
	raw [][]byte
}

func (f *fakeIngester) Process(_ context.Context, raw []byte) {
	f.raw = append(f.raw, raw)
}

type fakeAdmin struct {
	setURL  string
	dropped *bool
	err     error
}

func (f *fakeAdmin) SetWebhook(_ context.Context, url string) error {
	if f.err != nil {
		return f.err
	}
	f.setURL = url
	return nil
}

func (f *fakeAdmin) DeleteWebhook(_ context.Context, dropPending bool) error {
	if f.err != nil {
		return f.err
	}
	f.dropped = &dropPending
	return nil
}

type fakePlatform struct {
	membership telegram.Membership
	memberErr  error
	info       telegram.UserInfo
	infoErr    error

	lastChannel int64
	lastUser    int64
}

func (f *fakePlatform) GetMembership(_ context.Context, channelID, userID int64) (telegram.Membership, error) {
	f.lastChannel, f.lastUser = channelID, userID
	if f.memberErr != nil {
		return telegram.MembershipUnknown, f.memberErr
	}
	return f.membership, nil
}

func (f *fakePlatform) GetUserInfo(_ context.Context, userID int64) (telegram.UserInfo, error) {
	f.lastUser = userID
	if f.infoErr != nil {
		return telegram.UserInfo{}, f.infoErr
	}
	return f.info, nil
}

// ---------- helpers ----------

const testToken = "12345:test-token"

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhook/:token", h.ReceiveUpdate)
	r.POST("/api/v1/messages", h.SendMessage)
	r.POST("/api/v1/messages/bulk", h.SendBulk)
	r.POST("/api/v1/announcements", h.PostAnnouncement)
	r.GET("/api/v1/tasks/:id", h.GetTask)
	r.DELETE("/api/v1/tasks/:id", h.CancelTask)
	r.GET("/api/v1/batches/:id/status", h.GetBatchStatus)
	r.GET("/api/v1/giveaways/:id/delivery-status", h.GetGiveawayStatus)
	r.POST("/api/v1/webhook", h.SetWebhook)
	r.DELETE("/api/v1/webhook", h.DeleteWebhook)
	r.POST("/api/v1/check-membership", h.CheckMembership)
	r.GET("/api/v1/user-info/:id", h.GetUserInfo)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var buf *bytes.Buffer
	if body == "" {
		buf = bytes.NewBuffer(nil)
	} else {
		buf = bytes.NewBufferString(body)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func seedTask(t *testing.T, db *gorm.DB, task *domain.DeliveryTask) {
	t.Helper()
	if err := repo.CreateTask(context.Background(), db, task); err != nil {
		t.Fatalf("seed task: %v", err)
	}
}

func pendingTask(recipient int64) *domain.DeliveryTask {
	due := time.Now().UTC()
	return &domain.DeliveryTask{
		ID:            uuid.NewString(),
		RecipientID:   recipient,
		MessageType:   domain.MessageSingle,
		Text:          "hello",
		MaxAttempts:   3,
		Status:        domain.StatusPending,
		NextAttemptAt: &due,
	}
}

// ---------- webhook ingestion ----------

func TestReceiveUpdateTokenMismatch(t *testing.T) {
	ing := &fakeIngester{}
	h := New(&fakeQueue{}, ing, &fakeAdmin{}, &fakePlatform{}, nil, testToken)
	r := newRouter(h)

	w := doJSON(t, r, http.MethodPost, "/webhook/wrong-token", `{"update_id":1}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("wrong token -> %d", w.Code)
	}
	if len(ing.raw) != 0 {
		t.Fatalf("payload reached ingester despite bad token")
	}
}

func TestReceiveUpdateQueued(t *testing.T) {
	ing := &fakeIngester{}
	h := New(&fakeQueue{}, ing, &fakeAdmin{}, &fakePlatform{}, nil, testToken)
	r := newRouter(h)

	body := `{"update_id":42,"message":{"message_id":1}}`
	w := doJSON(t, r, http.MethodPost, "/webhook/"+testToken, body)
	if w.Code != http.StatusOK {
		t.Fatalf("ingest -> %d body=%s", w.Code, w.Body.String())
	}
	if len(ing.raw) != 1 || string(ing.raw[0]) != body {
		t.Fatalf("ingester got %q", ing.raw)
	}

	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out["ok"] != true {
		t.Fatalf("body = %v", out)
	}
}

// Malformed JSON still gets a 200: the platform must not retry it.
func TestReceiveUpdateMalformedStillOK(t *testing.T) {
	ing := &fakeIngester{}
	h := New(&fakeQueue{}, ing, &fakeAdmin{}, &fakePlatform{}, nil, testToken)
	r := newRouter(h)

	w := doJSON(t, r, http.MethodPost, "/webhook/"+testToken, "{nonsense")
	if w.Code != http.StatusOK {
		t.Fatalf("malformed -> %d", w.Code)
	}
	if len(ing.raw) != 1 {
		t.Fatalf("malformed payload should still reach the pipeline")
	}
}

// ---------- single message ----------

func TestSendMessage(t *testing.T) {
	q := &fakeQueue{}
	h := New(q, &fakeIngester{}, &fakeAdmin{}, &fakePlatform{}, nil, testToken)
	r := newRouter(h)

	// Bad JSON -> 400
	if w := doJSON(t, r, http.MethodPost, "/api/v1/messages", "{bad"); w.Code != http.StatusBadRequest {
		t.Fatalf("bad json -> %d", w.Code)
	}

	// No content -> 400
	if w := doJSON(t, r, http.MethodPost, "/api/v1/messages", `{"recipient_id":7}`); w.Code != http.StatusBadRequest {
		t.Fatalf("empty content -> %d", w.Code)
	}

	// Unknown message type -> 400
	w := doJSON(t, r, http.MethodPost, "/api/v1/messages", `{"recipient_id":7,"text":"hi","message_type":"carrier-pigeon"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown type -> %d", w.Code)
	}

	// Success -> 202 with task
	w = doJSON(t, r, http.MethodPost, "/api/v1/messages", `{"recipient_id":7,"text":"hi","photo_url":"https://cdn/x.png"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("send -> %d body=%s", w.Code, w.Body.String())
	}
	if len(q.single) != 1 {
		t.Fatalf("enqueued %d", len(q.single))
	}
	got := q.single[0]
	if got.RecipientID != 7 || got.Content.Text != "hi" || got.Content.PhotoURL != "https://cdn/x.png" {
		t.Fatalf("unexpected request: %#v", got)
	}

	var task domain.DeliveryTask
	if err := json.Unmarshal(w.Body.Bytes(), &task); err != nil {
		t.Fatalf("json: %v", err)
	}
	if task.ID == "" || task.Status != domain.StatusPending {
		t.Fatalf("unexpected task: %#v", task)
	}
}

func TestSendMessageEnqueueError(t *testing.T) {
	q := &fakeQueue{err: errors.New("disk full")}
	h := New(q, &fakeIngester{}, &fakeAdmin{}, &fakePlatform{}, nil, testToken)
	r := newRouter(h)

	w := doJSON(t, r, http.MethodPost, "/api/v1/messages", `{"recipient_id":7,"text":"hi"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("enqueue error -> %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Code != ErrCodeEnqueueFailed {
		t.Fatalf("code = %q", resp.Code)
	}
}

// ---------- bulk ----------

func TestSendBulkWinnerLoserExpansion(t *testing.T) {
	q := &fakeQueue{}
	h := New(q, &fakeIngester{}, &fakeAdmin{}, &fakePlatform{}, nil, testToken)
	r := newRouter(h)

	body := `{
		"giveaway_id": 9,
		"winner_message": "you won!",
		"loser_message": "better luck next time",
		"recipients": [
			{"recipient_id": 100, "is_winner": true},
			{"recipient_id": 200},
			{"recipient_id": 300, "is_winner": true}
		]
	}`
	w := doJSON(t, r, http.MethodPost, "/api/v1/messages/bulk", body)
	if w.Code != http.StatusAccepted {
		t.Fatalf("bulk -> %d body=%s", w.Code, w.Body.String())
	}

	var out BatchAccepted
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.BatchID == "" || out.Total != 3 {
		t.Fatalf("unexpected response: %#v", out)
	}

	if len(q.batch) != 1 {
		t.Fatalf("enqueued %d batches", len(q.batch))
	}
	recs := q.batch[0].Recipients
	if len(recs) != 3 {
		t.Fatalf("recipients = %d", len(recs))
	}
	if recs[0].Text != "you won!" || recs[0].MessageType != domain.MessageWinner {
		t.Fatalf("winner expansion: %#v", recs[0])
	}
	if recs[1].Text != "better luck next time" || recs[1].MessageType != domain.MessageLoser {
		t.Fatalf("loser expansion: %#v", recs[1])
	}
	if q.batch[0].GiveawayID == nil || *q.batch[0].GiveawayID != 9 {
		t.Fatalf("giveaway id lost: %#v", q.batch[0].GiveawayID)
	}
}

func TestSendBulkValidation(t *testing.T) {
	q := &fakeQueue{}
	h := New(q, &fakeIngester{}, &fakeAdmin{}, &fakePlatform{}, nil, testToken)
	r := newRouter(h)

	// No recipients -> 400
	if w := doJSON(t, r, http.MethodPost, "/api/v1/messages/bulk", `{"text":"hi","recipients":[]}`); w.Code != http.StatusBadRequest {
		t.Fatalf("empty recipients -> %d", w.Code)
	}

	// No message body at all -> 400
	if w := doJSON(t, r, http.MethodPost, "/api/v1/messages/bulk", `{"recipients":[{"recipient_id":1}]}`); w.Code != http.StatusBadRequest {
		t.Fatalf("no body -> %d", w.Code)
	}

	// Uniform text applies to every recipient
	w := doJSON(t, r, http.MethodPost, "/api/v1/messages/bulk", `{"text":"maintenance tonight","recipients":[{"recipient_id":1},{"recipient_id":2}]}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("uniform bulk -> %d", w.Code)
	}
	for _, rec := range q.batch[0].Recipients {
		if rec.Text != "maintenance tonight" || rec.MessageType != "" {
			t.Fatalf("uniform expansion: %#v", rec)
		}
	}
}

// ---------- announcements ----------

func TestPostAnnouncementKeyboards(t *testing.T) {
	q := &fakeQueue{}
	h := New(q, &fakeIngester{}, &fakeAdmin{}, &fakePlatform{}, nil, testToken)
	r := newRouter(h)

	// Without result token: participate keyboard
	w := doJSON(t, r, http.MethodPost, "/api/v1/announcements", `{"channel_id":-100,"giveaway_id":9,"text":"giveaway!","photo_url":"https://cdn/p.png"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("announce -> %d body=%s", w.Code, w.Body.String())
	}
	req := q.single[0]
	if req.MessageType != domain.MessageAnnouncement || req.RecipientID != -100 {
		t.Fatalf("unexpected request: %#v", req)
	}
	if req.GiveawayID == nil || *req.GiveawayID != 9 {
		t.Fatalf("giveaway id lost")
	}
	if len(req.Content.Keyboard) != 1 || req.Content.Keyboard[0][0].CallbackData != "participate:9" {
		t.Fatalf("keyboard = %#v", req.Content.Keyboard)
	}

	// With result token: view_results keyboard
	w = doJSON(t, r, http.MethodPost, "/api/v1/announcements", `{"channel_id":-100,"giveaway_id":9,"text":"results are in","result_token":"tok123"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("conclusion -> %d", w.Code)
	}
	req = q.single[1]
	if req.Content.Keyboard[0][0].CallbackData != "view_results:tok123" {
		t.Fatalf("keyboard = %#v", req.Content.Keyboard)
	}

	// Missing fields -> 400
	if w := doJSON(t, r, http.MethodPost, "/api/v1/announcements", `{"giveaway_id":9}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing fields -> %d", w.Code)
	}
}

// ---------- status queries ----------

func TestGetAndCancelTask(t *testing.T) {
	db := newHandlerDB(t)
	h := New(&fakeQueue{}, &fakeIngester{}, &fakeAdmin{}, &fakePlatform{}, db, testToken)
	r := newRouter(h)

	task := pendingTask(7)
	seedTask(t, db, task)

	// Not a UUID -> 400
	if w := doJSON(t, r, http.MethodGet, "/api/v1/tasks/not-a-uuid", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id -> %d", w.Code)
	}

	// Unknown -> 404
	if w := doJSON(t, r, http.MethodGet, "/api/v1/tasks/"+uuid.NewString(), ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown -> %d", w.Code)
	}

	// Found -> 200
	w := doJSON(t, r, http.MethodGet, "/api/v1/tasks/"+task.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get -> %d", w.Code)
	}
	var got domain.DeliveryTask
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("json: %v", err)
	}
	if got.ID != task.ID || got.Status != domain.StatusPending {
		t.Fatalf("unexpected task: %#v", got)
	}

	// Cancel pending -> 204
	if w := doJSON(t, r, http.MethodDelete, "/api/v1/tasks/"+task.ID, ""); w.Code != http.StatusNoContent {
		t.Fatalf("cancel -> %d", w.Code)
	}

	// Cancel again -> 409 (already terminal)
	if w := doJSON(t, r, http.MethodDelete, "/api/v1/tasks/"+task.ID, ""); w.Code != http.StatusConflict {
		t.Fatalf("double cancel -> %d", w.Code)
	}
}

func TestGetBatchStatus(t *testing.T) {
	db := newHandlerDB(t)
	h := New(&fakeQueue{}, &fakeIngester{}, &fakeAdmin{}, &fakePlatform{}, db, testToken)
	r := newRouter(h)

	batchID := uuid.NewString()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		task := pendingTask(int64(100 + i))
		task.BatchID = &batchID
		seedTask(t, db, task)
	}
	delivered := pendingTask(999)
	delivered.BatchID = &batchID
	seedTask(t, db, delivered)
	if _, err := repo.ClaimDue(ctx, db, time.Now().UTC().Add(time.Second)); err != nil {
		t.Fatalf("claim: %v", err)
	}
	// Whichever task got claimed, flip it to delivered.
	var claimed domain.DeliveryTask
	if err := db.First(&claimed, "status = ?", domain.StatusInFlight).Error; err != nil {
		t.Fatalf("find claimed: %v", err)
	}
	if err := repo.MarkDelivered(ctx, db, claimed.ID, 55, time.Now().UTC()); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	// And fail the next one for good.
	failed, err := repo.ClaimDue(ctx, db, time.Now().UTC().Add(time.Second))
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := repo.MarkPermanent(ctx, db, failed.ID, "CHAT_NOT_FOUND"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	w := doJSON(t, r, http.MethodGet, "/api/v1/batches/"+batchID+"/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("batch status -> %d body=%s", w.Code, w.Body.String())
	}
	var out BatchStatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.Total != 4 || out.Delivered != 1 || out.Permanent != 1 || out.Pending != 2 {
		t.Fatalf("summary: %#v", out)
	}
	if out.Complete {
		t.Fatalf("batch with pending tasks reported complete")
	}
	if len(out.FailedRecipients) != 1 || out.FailedRecipients[0].RecipientID != failed.RecipientID {
		t.Fatalf("failed recipients: %v", out.FailedRecipients)
	}
	if out.FailedRecipients[0].LastErrorCode != "CHAT_NOT_FOUND" {
		t.Fatalf("last error code = %q, want CHAT_NOT_FOUND", out.FailedRecipients[0].LastErrorCode)
	}

	// Unknown batch -> 404
	if w := doJSON(t, r, http.MethodGet, "/api/v1/batches/"+uuid.NewString()+"/status", ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown batch -> %d", w.Code)
	}
}

func TestGetGiveawayStatus(t *testing.T) {
	db := newHandlerDB(t)
	h := New(&fakeQueue{}, &fakeIngester{}, &fakeAdmin{}, &fakePlatform{}, db, testToken)
	r := newRouter(h)

	gid := int64(9)
	ctx := context.Background()

	okTask := pendingTask(100)
	okTask.GiveawayID = &gid
	seedTask(t, db, okTask)

	badTask := pendingTask(200)
	badTask.GiveawayID = &gid
	seedTask(t, db, badTask)

	// Drive badTask to failed_permanent via the repo.
	for {
		claimed, err := repo.ClaimDue(ctx, db, time.Now().UTC().Add(time.Second))
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		if claimed.ID == badTask.ID {
			if err := repo.MarkPermanent(ctx, db, claimed.ID, "RECIPIENT_BLOCKED"); err != nil {
				t.Fatalf("fail: %v", err)
			}
			break
		}
		if err := repo.MarkDelivered(ctx, db, claimed.ID, 10, time.Now().UTC()); err != nil {
			t.Fatalf("deliver: %v", err)
		}
	}

	w := doJSON(t, r, http.MethodGet, "/api/v1/giveaways/9/delivery-status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("giveaway status -> %d body=%s", w.Code, w.Body.String())
	}
	var out GiveawayStatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.Total != 2 || out.Failed != 1 {
		t.Fatalf("summary: %#v", out)
	}
	if len(out.FailedRecipients) != 1 || out.FailedRecipients[0].RecipientID != 200 {
		t.Fatalf("failed recipients: %v", out.FailedRecipients)
	}
	if out.FailedRecipients[0].LastErrorCode != "RECIPIENT_BLOCKED" {
		t.Fatalf("last error code = %q, want RECIPIENT_BLOCKED", out.FailedRecipients[0].LastErrorCode)
	}

	// Bad id -> 400, unknown -> 404
	if w := doJSON(t, r, http.MethodGet, "/api/v1/giveaways/zero/delivery-status", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id -> %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodGet, "/api/v1/giveaways/777/delivery-status", ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown giveaway -> %d", w.Code)
	}
}

// ---------- webhook management ----------

func TestSetWebhook(t *testing.T) {
	admin := &fakeAdmin{}
	h := New(&fakeQueue{}, &fakeIngester{}, admin, &fakePlatform{}, nil, testToken)
	r := newRouter(h)

	// Missing URL -> 400
	if w := doJSON(t, r, http.MethodPost, "/api/v1/webhook", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing url -> %d", w.Code)
	}

	// Success -> 200
	w := doJSON(t, r, http.MethodPost, "/api/v1/webhook", `{"url":"https://bot.example.com/webhook/secret"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("set -> %d body=%s", w.Code, w.Body.String())
	}
	if admin.setURL != "https://bot.example.com/webhook/secret" {
		t.Fatalf("url = %q", admin.setURL)
	}

	// Platform failure -> 502
	admin.err = errors.New("telegram says no")
	if w := doJSON(t, r, http.MethodPost, "/api/v1/webhook", `{"url":"https://bot.example.com/webhook/secret"}`); w.Code != http.StatusBadGateway {
		t.Fatalf("platform error -> %d", w.Code)
	}
}

func TestDeleteWebhook(t *testing.T) {
	admin := &fakeAdmin{}
	h := New(&fakeQueue{}, &fakeIngester{}, admin, &fakePlatform{}, nil, testToken)
	r := newRouter(h)

	if w := doJSON(t, r, http.MethodDelete, "/api/v1/webhook?drop_pending=true", ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete -> %d", w.Code)
	}
	if admin.dropped == nil || !*admin.dropped {
		t.Fatalf("drop_pending not forwarded")
	}

	if w := doJSON(t, r, http.MethodDelete, "/api/v1/webhook", ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete -> %d", w.Code)
	}
	if admin.dropped == nil || *admin.dropped {
		t.Fatalf("drop_pending should default to false")
	}
}

// ---------- bot-API passthrough ----------

func TestCheckMembership(t *testing.T) {
	platform := &fakePlatform{membership: telegram.Member}
	h := New(&fakeQueue{}, &fakeIngester{}, &fakeAdmin{}, platform, nil, testToken)
	r := newRouter(h)

	// Missing fields -> 400
	if w := doJSON(t, r, http.MethodPost, "/api/v1/check-membership", `{"channel_id":-100}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing user_id -> %d", w.Code)
	}

	w := doJSON(t, r, http.MethodPost, "/api/v1/check-membership", `{"channel_id":-100,"user_id":10}`)
	if w.Code != http.StatusOK {
		t.Fatalf("check -> %d body=%s", w.Code, w.Body.String())
	}
	var out CheckMembershipResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !out.IsMember || out.MembershipStatus != "member" {
		t.Fatalf("verdict = %+v", out)
	}
	if platform.lastChannel != -100 || platform.lastUser != 10 {
		t.Fatalf("lookup args = %d, %d", platform.lastChannel, platform.lastUser)
	}

	// Non-member -> is_member false
	platform.membership = telegram.NotMember
	w = doJSON(t, r, http.MethodPost, "/api/v1/check-membership", `{"channel_id":-100,"user_id":10}`)
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.IsMember || out.MembershipStatus != "not_member" {
		t.Fatalf("verdict = %+v", out)
	}

	// Lookup failure -> 502
	platform.memberErr = errors.New("chat unreachable")
	if w := doJSON(t, r, http.MethodPost, "/api/v1/check-membership", `{"channel_id":-100,"user_id":10}`); w.Code != http.StatusBadGateway {
		t.Fatalf("lookup failure -> %d", w.Code)
	}
}

func TestGetUserInfoEndpoint(t *testing.T) {
	platform := &fakePlatform{info: telegram.UserInfo{ID: 10, Username: "alice", FirstName: "Alice"}}
	h := New(&fakeQueue{}, &fakeIngester{}, &fakeAdmin{}, platform, nil, testToken)
	r := newRouter(h)

	// Bad id -> 400
	if w := doJSON(t, r, http.MethodGet, "/api/v1/user-info/zero", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id -> %d", w.Code)
	}

	w := doJSON(t, r, http.MethodGet, "/api/v1/user-info/10", "")
	if w.Code != http.StatusOK {
		t.Fatalf("user info -> %d body=%s", w.Code, w.Body.String())
	}
	var out struct {
		UserInfo telegram.UserInfo `json:"user_info"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.UserInfo.ID != 10 || out.UserInfo.Username != "alice" {
		t.Fatalf("info = %+v", out.UserInfo)
	}

	// A user who never opened a chat with the bot -> 404
	platform.infoErr = &telegram.SendError{Code: telegram.CodeRecipientUnavailable}
	if w := doJSON(t, r, http.MethodGet, "/api/v1/user-info/10", ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown user -> %d", w.Code)
	}

	// Transient platform failure -> 502
	platform.infoErr = &telegram.SendError{Code: telegram.CodeTransientNetwork}
	if w := doJSON(t, r, http.MethodGet, "/api/v1/user-info/10", ""); w.Code != http.StatusBadGateway {
		t.Fatalf("transient failure -> %d", w.Code)
	}
}
