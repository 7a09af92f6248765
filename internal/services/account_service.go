package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"commentboard/internal/config"
	"commentboard/internal/cookies"
	"commentboard/internal/dbx"
	"commentboard/internal/logging"
	"commentboard/internal/models"
	"commentboard/internal/repositories"
	"commentboard/internal/sterilize"
)

var (
	errRejectedInput = errors.New("input rejected by sterilization")
	errNameTaken     = errors.New("login name already taken")
	errBadCredential = errors.New("bad credentials")
	errNoPending     = errors.New("no pending confirmation")
	errNonceMismatch = errors.New("public nonce mismatch")
	errConfirmWrite  = errors.New("confirmation write set did not apply")
)

// SignupResult carries what the client needs to continue the
// confirmation: the three signup cookies and their lifetimes.
type SignupResult struct {
	LoginID           int64
	Name              string
	Email             string
	PublicNonce       string
	NonceExpiresAt    time.Time
	UsernameExpiresAt time.Time
}

// AccountService runs signup, email confirmation and login.
//
// A Login moves PendingSignup -> PendingConfirmation -> Confirmed. Pending
// logins hold exactly one ECode and one Nonce; confirmation removes both
// in the same transaction that flips the confirmed flag.
type AccountService struct {
	repos    repositories.Manager
	ecodes   *ECodeService
	nonces   *NonceService
	sessions *SessionIssuer
	mailer   MailDispatcher
	log      logging.Logger

	bcryptCost  int
	usernameTTL time.Duration
	now         func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

func NewAccountService(
	repos repositories.Manager,
	ecodes *ECodeService,
	nonces *NonceService,
	sessions *SessionIssuer,
	mailer MailDispatcher,
	cfg config.AuthConfig,
	log logging.Logger,
) *AccountService {
	return &AccountService{
		repos:       repos,
		ecodes:      ecodes,
		nonces:      nonces,
		sessions:    sessions,
		mailer:      mailer,
		log:         log.With("component", "account"),
		bcryptCost:  cfg.BcryptCost,
		usernameTTL: cfg.UsernameCookieTTL,
		now:         time.Now,
	}
}

// Signup creates an unconfirmed login with its ECode and Nonce in one
// transaction and dispatches the confirmation mail. A failed dispatch is
// logged; the pending login stays and can be resent.
func (s *AccountService) Signup(ctx context.Context, rawName, rawEmail, rawPassword string) (*SignupResult, error) {
	name := sterilize.Name(rawName)
	email := sterilize.Email(rawEmail)
	password := sterilize.Password(rawPassword)
	if !sterilize.Accept(rawName, name) || !sterilize.Accept(rawEmail, email) || !sterilize.Accept(rawPassword, password) {
		return nil, accountErr(KindValidation, errRejectedInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, accountErr(KindPersistence, err)
	}

	var (
		login *models.Login
		ecode *models.ECode
		nonce *models.Nonce
	)
	err = s.repos.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		login = &models.Login{Name: name, Email: email, PasswordHash: string(hash)}
		if err := s.repos.Logins(tx).Create(ctx, login); err != nil {
			if errors.Is(err, models.ErrConflict) {
				return accountErr(KindValidation, errNameTaken)
			}
			return accountErr(KindPersistence, err)
		}
		if login.ID == 0 {
			return accountErr(KindPersistence, errors.New("login created without id"))
		}
		ecode, nonce, err = s.issuePair(ctx, tx, login.ID)
		return err
	})
	if err != nil {
		s.log.Warn(ctx, "signup failed", "name", name, "err", err)
		return nil, asAccountErr(err)
	}

	s.dispatch(ctx, login.ID, email, name, ecode.Code)
	s.log.Info(ctx, "signup pending confirmation", "login_id", login.ID)

	return s.result(login.ID, name, email, nonce), nil
}

// ConfirmEmail completes a pending signup. raw holds the Username,
// AttemptEmail and ConfirmNonce cookie values as received.
func (s *AccountService) ConfirmEmail(ctx context.Context, raw map[string]string, submittedCode string) (*Session, error) {
	state, err := cookies.ParseSignupState(raw)
	if err != nil {
		return nil, accountErr(KindStateCorrupted, err)
	}

	code := sterilize.Code(submittedCode)
	if !sterilize.Accept(submittedCode, code) {
		return nil, accountErr(KindInvalidCode, errRejectedInput)
	}

	pending, err := s.ecodes.Resolve(ctx, code, state.Name, state.Email)
	if errors.Is(err, models.ErrNotFound) {
		return nil, s.unresolvedCode(ctx, state)
	}
	if err != nil {
		return nil, accountErr(KindPersistence, err)
	}

	switch s.nonces.Verify(state.PublicNonce, pending.NonceSecret, pending.NonceExpiresAt) {
	case OutcomeExpired:
		return nil, &AccountError{Kind: KindExpiredNonce, LoginID: pending.LoginID, Err: errors.New("confirmation window elapsed")}
	case OutcomeMismatch:
		s.log.Warn(ctx, "confirm: nonce mismatch", "login_id", pending.LoginID)
		return nil, accountErr(KindStateCorrupted, errNonceMismatch)
	}

	err = s.repos.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		// order matters: login, then nonce, then the ecode it references
		if err := s.repos.Logins(tx).MarkConfirmed(ctx, pending.LoginID); err != nil {
			return err
		}
		if err := s.nonces.Delete(ctx, tx, pending.ECodeID); err != nil {
			return err
		}
		return s.ecodes.Delete(ctx, tx, pending.ECodeID)
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, accountErr(KindStateCorrupted, errConfirmWrite)
		}
		return nil, accountErr(KindPersistence, err)
	}
	s.log.Info(ctx, "login confirmed", "login_id", pending.LoginID)

	return s.issueSession(pending.LoginID, pending.LoginName, pending.LoginEmail)
}

// unresolvedCode tells a mistyped code apart from state that no longer
// matches anything: the former keeps the pending identity and its nonce.
func (s *AccountService) unresolvedCode(ctx context.Context, state cookies.SignupState) error {
	pending, err := s.repos.ECodes(s.repos.Conn()).ResolveByIdentity(ctx, state.Name, state.Email)
	if errors.Is(err, models.ErrNotFound) {
		return accountErr(KindStateCorrupted, errNoPending)
	}
	if err != nil {
		return accountErr(KindPersistence, err)
	}
	// an elapsed window does not excuse a forged nonce
	if !Matches(state.PublicNonce, pending.NonceSecret, pending.NonceExpiresAt) {
		return accountErr(KindStateCorrupted, errNonceMismatch)
	}
	s.log.Info(ctx, "confirm: wrong code", "login_id", pending.LoginID)
	return accountErr(KindInvalidCode, errors.New("code does not match"))
}

// Login authenticates a confirmed login. Unknown, unconfirmed and
// wrong-password attempts all fail the same way.
func (s *AccountService) Login(ctx context.Context, rawName, rawPassword string) (*Session, error) {
	name := sterilize.Name(rawName)
	password := sterilize.Password(rawPassword)
	if !sterilize.Accept(rawName, name) || !sterilize.Accept(rawPassword, password) {
		return nil, accountErr(KindUnauthorized, errBadCredential)
	}

	login, err := s.repos.Logins(s.repos.Conn()).GetConfirmedByName(ctx, name)
	if errors.Is(err, models.ErrNotFound) {
		// equalize timing with the wrong-password path
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return nil, accountErr(KindUnauthorized, errBadCredential)
	}
	if err != nil {
		return nil, accountErr(KindPersistence, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(login.PasswordHash), []byte(password)); err != nil {
		return nil, accountErr(KindUnauthorized, errBadCredential)
	}

	s.log.Info(ctx, "login ok", "login_id", login.ID)
	return s.issueSession(login.ID, login.Name, login.Email)
}

// ReissueConfirmation replaces the ECode and Nonce of a pending login and
// mails the new code. The login itself is kept.
func (s *AccountService) ReissueConfirmation(ctx context.Context, loginID int64) (*SignupResult, error) {
	var (
		login *models.Login
		nonce *models.Nonce
		ecode *models.ECode
	)
	err := s.repos.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		login, err = s.repos.Logins(tx).GetByID(ctx, loginID)
		if errors.Is(err, models.ErrNotFound) {
			return accountErr(KindStateCorrupted, errNoPending)
		}
		if err != nil {
			return accountErr(KindPersistence, err)
		}
		if login.Confirmed {
			return accountErr(KindStateCorrupted, errNoPending)
		}

		stale, err := s.repos.ECodes(tx).GetByLoginID(ctx, loginID)
		switch {
		case err == nil:
			if err := s.nonces.Delete(ctx, tx, stale.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
				return accountErr(KindPersistence, err)
			}
			if err := s.ecodes.Delete(ctx, tx, stale.ID); err != nil {
				return accountErr(KindPersistence, err)
			}
		case !errors.Is(err, models.ErrNotFound):
			return accountErr(KindPersistence, err)
		}

		ecode, nonce, err = s.issuePair(ctx, tx, loginID)
		return err
	})
	if err != nil {
		s.log.Warn(ctx, "reissue failed", "login_id", loginID, "err", err)
		return nil, asAccountErr(err)
	}

	s.dispatch(ctx, login.ID, login.Email, login.Name, ecode.Code)
	s.log.Info(ctx, "confirmation reissued", "login_id", loginID)

	return s.result(login.ID, login.Name, login.Email, nonce), nil
}

// ResendConfirmation reissues for the pending login named by the signup
// cookies. The ConfirmNonce cookie must match the stored nonce; its
// expiry is not checked.
func (s *AccountService) ResendConfirmation(ctx context.Context, raw map[string]string) (*SignupResult, error) {
	state, err := cookies.ParseSignupState(raw)
	if err != nil {
		return nil, accountErr(KindStateCorrupted, err)
	}
	pending, err := s.repos.ECodes(s.repos.Conn()).ResolveByIdentity(ctx, state.Name, state.Email)
	if errors.Is(err, models.ErrNotFound) {
		return nil, accountErr(KindStateCorrupted, errNoPending)
	}
	if err != nil {
		return nil, accountErr(KindPersistence, err)
	}
	if !Matches(state.PublicNonce, pending.NonceSecret, pending.NonceExpiresAt) {
		return nil, accountErr(KindStateCorrupted, errNonceMismatch)
	}
	return s.ReissueConfirmation(ctx, pending.LoginID)
}

func (s *AccountService) issuePair(ctx context.Context, tx dbx.DBTX, loginID int64) (*models.ECode, *models.Nonce, error) {
	ecode, err := s.ecodes.Generate(ctx, tx, loginID)
	if err != nil {
		return nil, nil, generationErr(err)
	}
	nonce, err := s.nonces.Generate(ctx, tx, ecode.ID)
	if err != nil {
		return nil, nil, generationErr(err)
	}
	return ecode, nonce, nil
}

func (s *AccountService) issueSession(loginID int64, name, email string) (*Session, error) {
	token, exp, err := s.sessions.Issue(loginID, name, email)
	if err != nil {
		return nil, accountErr(KindPersistence, err)
	}
	return &Session{LoginID: loginID, Name: name, Token: token, ExpiresAt: exp}, nil
}

func (s *AccountService) dispatch(ctx context.Context, loginID int64, email, name, code string) {
	mail := ConfirmationMail{Email: email, Name: name, Code: code}
	if err := s.mailer.DispatchConfirmation(ctx, mail); err != nil {
		s.log.Error(ctx, "confirmation mail dispatch failed", "login_id", loginID, "err", err)
	}
}

func (s *AccountService) result(loginID int64, name, email string, nonce *models.Nonce) *SignupResult {
	return &SignupResult{
		LoginID:           loginID,
		Name:              name,
		Email:             email,
		PublicNonce:       Publicize(nonce.SecretCode, ExpiryISO(nonce.ExpiresAt)),
		NonceExpiresAt:    nonce.ExpiresAt,
		UsernameExpiresAt: s.now().Add(s.usernameTTL),
	}
}

func (s *AccountService) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.bcryptCost)
	})
	return s.dummyHash
}

func generationErr(err error) error {
	if errors.Is(err, ErrGenerationExhausted) {
		return accountErr(KindGenerationExhausted, err)
	}
	return accountErr(KindPersistence, err)
}

// asAccountErr keeps tagged errors and files anything else (commit,
// begin, cancellation) as a persistence failure.
func asAccountErr(err error) error {
	var ae *AccountError
	if errors.As(err, &ae) {
		return ae
	}
	return accountErr(KindPersistence, err)
}
