package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"relationship-app-backend/internal/apperrors"
	"relationship-app-backend/internal/models"
)

// memDB is an in-memory stand-in for the relational store, shared by
// the fake user and couple stores.
type memDB struct {
	users        map[string]models.User
	couples      map[int64]models.Couple
	nextCoupleID int64
}

func newMemDB() *memDB {
	return &memDB{
		users:        make(map[string]models.User),
		couples:      make(map[int64]models.Couple),
		nextCoupleID: 1,
	}
}

func (d *memDB) clone() *memDB {
	c := &memDB{
		users:        make(map[string]models.User, len(d.users)),
		couples:      make(map[int64]models.Couple, len(d.couples)),
		nextCoupleID: d.nextCoupleID,
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.couples {
		c.couples[k] = v
	}
	return c
}

// memTx snapshots the database before each transaction and restores
// it when the function fails, giving the fakes real rollback
// semantics.
type memTx struct {
	db *memDB
}

func (t *memTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := t.db.clone()
	if err := fn(ctx); err != nil {
		*t.db = *snap
		return err
	}
	return nil
}

type memUserStore struct {
	db *memDB
}

func (s *memUserStore) Create(ctx context.Context, user *models.User) error {
	for _, u := range s.db.users {
		if strings.EqualFold(u.Email, user.Email) {
			return apperrors.ErrEmailTaken
		}
	}
	s.db.users[user.ID] = *user
	return nil
}

func (s *memUserStore) get(id string) (models.User, error) {
	u, ok := s.db.users[id]
	if !ok {
		return models.User{}, fmt.Errorf("user: %w", apperrors.ErrNotFound)
	}
	return u, nil
}

func (s *memUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *memUserStore) GetByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	return s.GetByID(ctx, id)
}

func (s *memUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range s.db.users {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user: %w", apperrors.ErrNotFound)
}

func (s *memUserStore) UpdateProfile(ctx context.Context, userID string, nickname, avatarURL, gender *string) error {
	u, err := s.get(userID)
	if err != nil {
		return err
	}
	if nickname != nil {
		u.Nickname = *nickname
	}
	if avatarURL != nil {
		u.AvatarURL = avatarURL
	}
	if gender != nil {
		u.Gender = gender
	}
	s.db.users[userID] = u
	return nil
}

func (s *memUserStore) SetCouple(ctx context.Context, userID string, coupleID *int64) error {
	u, err := s.get(userID)
	if err != nil {
		return err
	}
	u.CoupleID = coupleID
	s.db.users[userID] = u
	return nil
}

func (s *memUserStore) ClearCoupleRefs(ctx context.Context, coupleID int64) error {
	for id, u := range s.db.users {
		if u.CoupleID != nil && *u.CoupleID == coupleID {
			u.CoupleID = nil
			s.db.users[id] = u
		}
	}
	return nil
}

func (s *memUserStore) GetPartner(ctx context.Context, coupleID int64, selfID string) (*models.User, error) {
	for id, u := range s.db.users {
		if id != selfID && u.CoupleID != nil && *u.CoupleID == coupleID {
			u := u
			return &u, nil
		}
	}
	return nil, fmt.Errorf("partner: %w", apperrors.ErrNotFound)
}

func (s *memUserStore) SetWelcomeDone(ctx context.Context, userID string) error {
	u, err := s.get(userID)
	if err != nil {
		return err
	}
	u.WelcomeDone = true
	s.db.users[userID] = u
	return nil
}

func (s *memUserStore) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	u, err := s.get(userID)
	if err != nil {
		return err
	}
	u.PushToken = pushToken
	s.db.users[userID] = u
	return nil
}

func (s *memUserStore) SetResetCode(ctx context.Context, userID string, code string, expires time.Time) error {
	u, err := s.get(userID)
	if err != nil {
		return err
	}
	u.ResetCode = &code
	u.ResetExpires = &expires
	s.db.users[userID] = u
	return nil
}

func (s *memUserStore) UpdatePassword(ctx context.Context, userID string, passwordHash string) error {
	u, err := s.get(userID)
	if err != nil {
		return err
	}
	u.PasswordHash = passwordHash
	u.ResetCode = nil
	u.ResetExpires = nil
	s.db.users[userID] = u
	return nil
}

func (s *memUserStore) Delete(ctx context.Context, userID string) error {
	if _, ok := s.db.users[userID]; !ok {
		return fmt.Errorf("user: %w", apperrors.ErrNotFound)
	}
	delete(s.db.users, userID)
	return nil
}

type memCoupleStore struct {
	db *memDB
}

func (s *memCoupleStore) Create(ctx context.Context, couple *models.Couple) error {
	for _, c := range s.db.couples {
		if c.Status == models.CoupleWaiting && c.InviteCode == couple.InviteCode {
			return fmt.Errorf("invite code %q: %w", couple.InviteCode, apperrors.ErrDuplicate)
		}
	}
	couple.ID = s.db.nextCoupleID
	s.db.nextCoupleID++
	if couple.Answers == nil {
		couple.Answers = json.RawMessage(`{}`)
	}
	s.db.couples[couple.ID] = *couple
	return nil
}

func (s *memCoupleStore) get(id int64) (models.Couple, error) {
	c, ok := s.db.couples[id]
	if !ok {
		return models.Couple{}, fmt.Errorf("couple: %w", apperrors.ErrNotFound)
	}
	return c, nil
}

func (s *memCoupleStore) GetByID(ctx context.Context, id int64) (*models.Couple, error) {
	c, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *memCoupleStore) GetWaitingByCode(ctx context.Context, code string) (*models.Couple, error) {
	for _, c := range s.db.couples {
		if c.Status == models.CoupleWaiting && c.InviteCode == code {
			c := c
			return &c, nil
		}
	}
	return nil, fmt.Errorf("waiting couple: %w", apperrors.ErrNotFound)
}

func (s *memCoupleStore) GetWaitingByCodeForUpdate(ctx context.Context, code string) (*models.Couple, error) {
	return s.GetWaitingByCode(ctx, code)
}

func (s *memCoupleStore) CodeExists(ctx context.Context, code string) (bool, error) {
	for _, c := range s.db.couples {
		if c.InviteCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *memCoupleStore) SetPartner(ctx context.Context, coupleID int64, partnerID string) error {
	c, err := s.get(coupleID)
	if err != nil {
		return err
	}
	if c.Status != models.CoupleWaiting {
		return fmt.Errorf("waiting couple: %w", apperrors.ErrNotFound)
	}
	c.PartnerID = &partnerID
	c.Status = models.CoupleFull
	s.db.couples[coupleID] = c
	return nil
}

func (s *memCoupleStore) MergeAnswers(ctx context.Context, coupleID int64, userID string, answers json.RawMessage) error {
	c, err := s.get(coupleID)
	if err != nil {
		return err
	}
	merged := map[string]json.RawMessage{}
	if len(c.Answers) > 0 {
		if err := json.Unmarshal(c.Answers, &merged); err != nil {
			return err
		}
	}
	merged[userID] = answers
	data, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	c.Answers = data
	s.db.couples[coupleID] = c
	return nil
}

func (s *memCoupleStore) SetSharedImage(ctx context.Context, coupleID int64, url *string) error {
	c, err := s.get(coupleID)
	if err != nil {
		return err
	}
	c.SharedImageURL = url
	s.db.couples[coupleID] = c
	return nil
}

func (s *memCoupleStore) Delete(ctx context.Context, id int64) error {
	if _, ok := s.db.couples[id]; !ok {
		return fmt.Errorf("couple: %w", apperrors.ErrNotFound)
	}
	delete(s.db.couples, id)
	return nil
}

// testEnv bundles the fakes and the service under test.
type testEnv struct {
	db      *memDB
	users   *memUserStore
	couples *memCoupleStore
	tx      *memTx
	pairing *PairingService
}

func newTestEnv() *testEnv {
	db := newMemDB()
	users := &memUserStore{db: db}
	couples := &memCoupleStore{db: db}
	tx := &memTx{db: db}
	return &testEnv{
		db:      db,
		users:   users,
		couples: couples,
		tx:      tx,
		pairing: NewPairingService(users, couples, tx, "https://app.test/invite"),
	}
}

func (e *testEnv) addUser(id, email string) *models.User {
	u := models.User{
		ID:        id,
		Email:     email,
		Provider:  models.ProviderLocal,
		CreatedAt: time.Now(),
	}
	e.db.users[id] = u
	return &u
}
