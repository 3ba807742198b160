package ctrl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gomarket-app/backend/internal/auth"
	"github.com/gomarket-app/backend/internal/auth/jwt"
	"github.com/gomarket-app/backend/internal/dto"
	"github.com/gomarket-app/backend/internal/models"
	"github.com/gomarket-app/backend/internal/repo"
	"github.com/gomarket-app/backend/tests/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestController_IssueSession(t *testing.T) {
	ctrlMock := gomock.NewController(t)
	defer ctrlMock.Finish()

	mockAuth := mocks.NewMockPort(ctrlMock)
	mockPwd := mocks.NewMockPasswordService(ctrlMock)
	mockRepo := mocks.NewMockAppRepo(ctrlMock)
	mockCache := mocks.NewMockCacheService(ctrlMock)
	mockS3 := mocks.NewMockS3Service(ctrlMock)
	mockEmail := mocks.NewMockEmailService(ctrlMock)

	ctx := context.Background()
	ctrl := New(mockAuth, mockPwd, mockRepo, mockCache, mockS3, mockEmail)

	testUserID := uuid.New()
	testDevice := &dto.DeviceRequest{
		IP: "192.168.1.1",
		UA: "test-user-agent",
	}

	tests := []struct {
		name     string
		setup    func()
		expected *dto.TokenPair
		wantErr  bool
	}{
		{
			name: "Success",
			setup: func() {
				mockRepo.EXPECT().
					GetActiveTokenByFingerprint(gomock.Any(), testUserID, testDevice.IP, testDevice.UA).
					Return(nil, repo.ErrNotFound)
				mockAuth.EXPECT().
					NewRefresh(gomock.Any(), testUserID, gomock.Any()).
					Return("refresh-token", nil)
				mockAuth.EXPECT().
					RefreshTTL().
					Return(7 * 24 * time.Hour)
				mockRepo.EXPECT().
					CreateToken(gomock.Any(), gomock.Any()).
					DoAndReturn(
						func(_ context.Context, rec *models.RefreshToken) error {
							assert.Equal(t, testUserID, rec.UserID)
							assert.Equal(t, auth.HashToken("refresh-token"), rec.TokenHash)
							assert.Equal(t, testDevice.IP, rec.IP)
							assert.Equal(t, testDevice.UA, rec.UserAgent)
							return nil
						},
					)
				mockAuth.EXPECT().
					NewAccess(gomock.Any(), testUserID, "test@example.com").
					Return("access-token", nil)
			},
			expected: &dto.TokenPair{
				Access:  "access-token",
				Refresh: "refresh-token",
			},
		},
		{
			name: "SupersedesExistingDeviceSession",
			setup: func() {
				mockRepo.EXPECT().
					GetActiveTokenByFingerprint(gomock.Any(), testUserID, testDevice.IP, testDevice.UA).
					Return(&models.RefreshToken{UserID: testUserID, JTI: uuid.New()}, nil)
				mockAuth.EXPECT().
					NewRefresh(gomock.Any(), testUserID, gomock.Any()).
					Return("refresh-token", nil)
				mockAuth.EXPECT().
					RefreshTTL().
					Return(7 * 24 * time.Hour)
				mockRepo.EXPECT().
					CreateToken(gomock.Any(), gomock.Any()).
					Return(nil)
				mockAuth.EXPECT().
					NewAccess(gomock.Any(), testUserID, "test@example.com").
					Return("access-token", nil)
			},
			expected: &dto.TokenPair{
				Access:  "access-token",
				Refresh: "refresh-token",
			},
		},
		{
			name: "FingerprintLookupError",
			setup: func() {
				mockRepo.EXPECT().
					GetActiveTokenByFingerprint(gomock.Any(), testUserID, testDevice.IP, testDevice.UA).
					Return(nil, errors.New("db error"))
			},
			wantErr: true,
		},
		{
			name: "StoreError",
			setup: func() {
				mockRepo.EXPECT().
					GetActiveTokenByFingerprint(gomock.Any(), testUserID, testDevice.IP, testDevice.UA).
					Return(nil, repo.ErrNotFound)
				mockAuth.EXPECT().
					NewRefresh(gomock.Any(), testUserID, gomock.Any()).
					Return("refresh-token", nil)
				mockAuth.EXPECT().
					RefreshTTL().
					Return(7 * 24 * time.Hour)
				mockRepo.EXPECT().
					CreateToken(gomock.Any(), gomock.Any()).
					Return(errors.New("db error"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()

			res, err := ctrl.IssueSession(ctx, testUserID, "test@example.com", testDevice)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, res)
			}
		})
	}
}

func TestController_Authenticate(t *testing.T) {
	ctrlMock := gomock.NewController(t)
	defer ctrlMock.Finish()

	mockAuth := mocks.NewMockPort(ctrlMock)
	mockPwd := mocks.NewMockPasswordService(ctrlMock)
	mockRepo := mocks.NewMockAppRepo(ctrlMock)
	mockCache := mocks.NewMockCacheService(ctrlMock)
	mockS3 := mocks.NewMockS3Service(ctrlMock)
	mockEmail := mocks.NewMockEmailService(ctrlMock)

	ctx := context.Background()
	ctrl := New(mockAuth, mockPwd, mockRepo, mockCache, mockS3, mockEmail)

	testUserID := uuid.New()
	testDevice := &dto.DeviceRequest{
		IP: "192.168.1.1",
		UA: "test-user-agent",
	}
	testRequest := &dto.EmailAndPasswordRequest{
		Email:    "test@example.com",
		Password: "validpassword123!",
	}
	testUser := &models.User{
		ID:       testUserID,
		Email:    "test@example.com",
		Password: "$2a$11$hashedpassword",
	}

	tests := []struct {
		name    string
		setup   func()
		wantErr bool
		err     error
	}{
		{
			name: "Success",
			setup: func() {
				mockRepo.EXPECT().
					GetUserByEmail(gomock.Any(), testRequest.Email).
					Return(testUser, nil)
				mockPwd.EXPECT().
					ComparePasswords([]byte(testUser.Password), []byte(testRequest.Password)).
					Return(nil)
				mockRepo.EXPECT().
					GetActiveTokenByFingerprint(gomock.Any(), testUserID, testDevice.IP, testDevice.UA).
					Return(nil, repo.ErrNotFound)
				mockAuth.EXPECT().
					NewRefresh(gomock.Any(), testUserID, gomock.Any()).
					Return("refresh-token", nil)
				mockAuth.EXPECT().
					RefreshTTL().
					Return(7 * 24 * time.Hour)
				mockRepo.EXPECT().
					CreateToken(gomock.Any(), gomock.Any()).
					Return(nil)
				mockAuth.EXPECT().
					NewAccess(gomock.Any(), testUserID, testUser.Email).
					Return("access-token", nil)
			},
		},
		{
			name: "UnknownEmailLooksLikeWrongPassword",
			setup: func() {
				mockRepo.EXPECT().
					GetUserByEmail(gomock.Any(), testRequest.Email).
					Return(nil, repo.ErrNotFound)
			},
			wantErr: true,
			err:     auth.ErrInvalidCredentials,
		},
		{
			name: "WrongPassword",
			setup: func() {
				mockRepo.EXPECT().
					GetUserByEmail(gomock.Any(), testRequest.Email).
					Return(testUser, nil)
				mockPwd.EXPECT().
					ComparePasswords([]byte(testUser.Password), []byte(testRequest.Password)).
					Return(auth.ErrInvalidCredentials)
			},
			wantErr: true,
			err:     auth.ErrInvalidCredentials,
		},
		{
			name: "RepositoryError",
			setup: func() {
				mockRepo.EXPECT().
					GetUserByEmail(gomock.Any(), testRequest.Email).
					Return(nil, errors.New("db error"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()

			res, err := ctrl.Authenticate(ctx, testDevice, testRequest)
			if tt.wantErr {
				assert.Error(t, err)
				if tt.err != nil {
					assert.ErrorIs(t, err, tt.err)
				}
				assert.Nil(t, res)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, res)
			}
		})
	}
}

func TestController_Register(t *testing.T) {
	ctrlMock := gomock.NewController(t)
	defer ctrlMock.Finish()

	mockAuth := mocks.NewMockPort(ctrlMock)
	mockPwd := mocks.NewMockPasswordService(ctrlMock)
	mockRepo := mocks.NewMockAppRepo(ctrlMock)
	mockCache := mocks.NewMockCacheService(ctrlMock)
	mockS3 := mocks.NewMockS3Service(ctrlMock)
	mockEmail := mocks.NewMockEmailService(ctrlMock)

	ctx := context.Background()
	ctrl := New(mockAuth, mockPwd, mockRepo, mockCache, mockS3, mockEmail)

	testUserID := uuid.New()
	testDevice := &dto.DeviceRequest{
		IP: "192.168.1.1",
		UA: "test-user-agent",
	}
	testRequest := &dto.RegisterRequest{
		Name:     "Test User",
		Email:    "test@example.com",
		Password: "validpassword123!",
	}

	t.Run("Success", func(t *testing.T) {
		emailSent := make(chan struct{})

		mockPwd.EXPECT().
			HashPassword(testRequest.Password).
			Return("hashed", nil)
		mockRepo.EXPECT().
			CreateUser(gomock.Any(), gomock.Any()).
			Return(testUserID, nil)
		mockEmail.EXPECT().
			SendWelcome(testRequest.Email, testRequest.Name).
			DoAndReturn(
				func(_, _ string) error {
					close(emailSent)
					return nil
				},
			)
		mockRepo.EXPECT().
			GetActiveTokenByFingerprint(gomock.Any(), testUserID, testDevice.IP, testDevice.UA).
			Return(nil, repo.ErrNotFound)
		mockAuth.EXPECT().
			NewRefresh(gomock.Any(), testUserID, gomock.Any()).
			Return("refresh-token", nil)
		mockAuth.EXPECT().
			RefreshTTL().
			Return(7 * 24 * time.Hour)
		mockRepo.EXPECT().
			CreateToken(gomock.Any(), gomock.Any()).
			Return(nil)
		mockAuth.EXPECT().
			NewAccess(gomock.Any(), testUserID, testRequest.Email).
			Return("access-token", nil)

		res, err := ctrl.Register(ctx, testDevice, testRequest)
		assert.NoError(t, err)
		assert.NotNil(t, res)

		select {
		case <-emailSent:
		case <-time.After(time.Second):
			t.Fatal("welcome email was never sent")
		}
	})

	t.Run("EmailTaken", func(t *testing.T) {
		mockPwd.EXPECT().
			HashPassword(testRequest.Password).
			Return("hashed", nil)
		mockRepo.EXPECT().
			CreateUser(gomock.Any(), gomock.Any()).
			Return(uuid.Nil, repo.ErrAlreadyExists)

		res, err := ctrl.Register(ctx, testDevice, testRequest)
		assert.ErrorIs(t, err, ErrAlreadyExists)
		assert.Nil(t, res)
	})
}

func TestController_Rotate(t *testing.T) {
	ctrlMock := gomock.NewController(t)
	defer ctrlMock.Finish()

	mockAuth := mocks.NewMockPort(ctrlMock)
	mockPwd := mocks.NewMockPasswordService(ctrlMock)
	mockRepo := mocks.NewMockAppRepo(ctrlMock)
	mockCache := mocks.NewMockCacheService(ctrlMock)
	mockS3 := mocks.NewMockS3Service(ctrlMock)
	mockEmail := mocks.NewMockEmailService(ctrlMock)

	ctx := context.Background()
	ctrl := New(mockAuth, mockPwd, mockRepo, mockCache, mockS3, mockEmail)

	testUserID := uuid.New()
	oldJTI := uuid.New()
	testDevice := &dto.DeviceRequest{
		IP: "192.168.1.1",
		UA: "test-user-agent",
	}
	testClaims := jwt.RefreshClaims{
		UID: testUserID,
		JTI: oldJTI,
	}
	testUser := &models.User{
		ID:    testUserID,
		Email: "test@example.com",
	}
	oldRecord := &models.RefreshToken{
		UserID:    testUserID,
		JTI:       oldJTI,
		Status:    models.TokenStatusActive,
		IP:        testDevice.IP,
		UserAgent: testDevice.UA,
	}

	tests := []struct {
		name     string
		setup    func()
		expected *dto.TokenPair
		wantErr  bool
		err      error
	}{
		{
			name: "Success",
			setup: func() {
				mockAuth.EXPECT().
					ParseRefresh(gomock.Any(), "old-refresh").
					Return(testClaims, nil)
				mockAuth.EXPECT().
					NewRefresh(gomock.Any(), testUserID, gomock.Any()).
					Return("new-refresh", nil)
				mockAuth.EXPECT().
					RefreshTTL().
					Return(7 * 24 * time.Hour)
				mockRepo.EXPECT().
					RotateToken(gomock.Any(), oldJTI, auth.HashToken("old-refresh"), gomock.Any()).
					Return(oldRecord, nil)
				mockRepo.EXPECT().
					GetUserByID(gomock.Any(), testUserID).
					Return(testUser, nil)
				mockAuth.EXPECT().
					NewAccess(gomock.Any(), testUserID, testUser.Email).
					Return("new-access", nil)
			},
			expected: &dto.TokenPair{
				Access:  "new-access",
				Refresh: "new-refresh",
			},
		},
		{
			name: "SuccessWithFingerprintMismatch",
			setup: func() {
				moved := *oldRecord
				moved.IP = "10.0.0.1"

				mockAuth.EXPECT().
					ParseRefresh(gomock.Any(), "old-refresh").
					Return(testClaims, nil)
				mockAuth.EXPECT().
					NewRefresh(gomock.Any(), testUserID, gomock.Any()).
					Return("new-refresh", nil)
				mockAuth.EXPECT().
					RefreshTTL().
					Return(7 * 24 * time.Hour)
				mockRepo.EXPECT().
					RotateToken(gomock.Any(), oldJTI, auth.HashToken("old-refresh"), gomock.Any()).
					Return(&moved, nil)
				mockRepo.EXPECT().
					GetUserByID(gomock.Any(), testUserID).
					Return(testUser, nil)
				mockAuth.EXPECT().
					NewAccess(gomock.Any(), testUserID, testUser.Email).
					Return("new-access", nil)
			},
			expected: &dto.TokenPair{
				Access:  "new-access",
				Refresh: "new-refresh",
			},
		},
		{
			name: "MalformedToken",
			setup: func() {
				mockAuth.EXPECT().
					ParseRefresh(gomock.Any(), "old-refresh").
					Return(jwt.RefreshClaims{}, jwt.ErrTokenMalformed)
			},
			wantErr: true,
			err:     jwt.ErrTokenMalformed,
		},
		{
			name: "UnknownToken",
			setup: func() {
				mockAuth.EXPECT().
					ParseRefresh(gomock.Any(), "old-refresh").
					Return(testClaims, nil)
				mockAuth.EXPECT().
					NewRefresh(gomock.Any(), testUserID, gomock.Any()).
					Return("new-refresh", nil)
				mockAuth.EXPECT().
					RefreshTTL().
					Return(7 * 24 * time.Hour)
				mockRepo.EXPECT().
					RotateToken(gomock.Any(), oldJTI, gomock.Any(), gomock.Any()).
					Return(nil, repo.ErrNotFound)
			},
			wantErr: true,
			err:     auth.ErrInvalidToken,
		},
		{
			name: "StoreSaysExpired",
			setup: func() {
				mockAuth.EXPECT().
					ParseRefresh(gomock.Any(), "old-refresh").
					Return(testClaims, nil)
				mockAuth.EXPECT().
					NewRefresh(gomock.Any(), testUserID, gomock.Any()).
					Return("new-refresh", nil)
				mockAuth.EXPECT().
					RefreshTTL().
					Return(7 * 24 * time.Hour)
				mockRepo.EXPECT().
					RotateToken(gomock.Any(), oldJTI, gomock.Any(), gomock.Any()).
					Return(oldRecord, repo.ErrTokenExpired)
			},
			wantErr: true,
			err:     jwt.ErrTokenExpired,
		},
		{
			name: "ReuseRevokesEverySession",
			setup: func() {
				rotated := *oldRecord
				rotated.Status = models.TokenStatusRotated

				mockAuth.EXPECT().
					ParseRefresh(gomock.Any(), "old-refresh").
					Return(testClaims, nil)
				mockAuth.EXPECT().
					NewRefresh(gomock.Any(), testUserID, gomock.Any()).
					Return("new-refresh", nil)
				mockAuth.EXPECT().
					RefreshTTL().
					Return(7 * 24 * time.Hour)
				mockRepo.EXPECT().
					RotateToken(gomock.Any(), oldJTI, gomock.Any(), gomock.Any()).
					Return(&rotated, repo.ErrTokenReused)
				mockRepo.EXPECT().
					RevokeUserTokens(gomock.Any(), testUserID).
					Return(nil)
			},
			wantErr: true,
			err:     auth.ErrReuseDetected,
		},
		{
			name: "ReuseStillRejectsWhenRevocationFails",
			setup: func() {
				rotated := *oldRecord
				rotated.Status = models.TokenStatusRotated

				mockAuth.EXPECT().
					ParseRefresh(gomock.Any(), "old-refresh").
					Return(testClaims, nil)
				mockAuth.EXPECT().
					NewRefresh(gomock.Any(), testUserID, gomock.Any()).
					Return("new-refresh", nil)
				mockAuth.EXPECT().
					RefreshTTL().
					Return(7 * 24 * time.Hour)
				mockRepo.EXPECT().
					RotateToken(gomock.Any(), oldJTI, gomock.Any(), gomock.Any()).
					Return(&rotated, repo.ErrTokenReused)
				mockRepo.EXPECT().
					RevokeUserTokens(gomock.Any(), testUserID).
					Return(errors.New("db error"))
			},
			wantErr: true,
			err:     auth.ErrReuseDetected,
		},
		{
			name: "UserDeletedMidSession",
			setup: func() {
				mockAuth.EXPECT().
					ParseRefresh(gomock.Any(), "old-refresh").
					Return(testClaims, nil)
				mockAuth.EXPECT().
					NewRefresh(gomock.Any(), testUserID, gomock.Any()).
					Return("new-refresh", nil)
				mockAuth.EXPECT().
					RefreshTTL().
					Return(7 * 24 * time.Hour)
				mockRepo.EXPECT().
					RotateToken(gomock.Any(), oldJTI, gomock.Any(), gomock.Any()).
					Return(oldRecord, nil)
				mockRepo.EXPECT().
					GetUserByID(gomock.Any(), testUserID).
					Return(nil, repo.ErrNotFound)
			},
			wantErr: true,
			err:     auth.ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()

			res, err := ctrl.Rotate(ctx, testDevice, "old-refresh")
			if tt.wantErr {
				assert.ErrorIs(t, err, tt.err)
				assert.Nil(t, res)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, res)
			}
		})
	}
}

func TestController_RotateCSRFHook(t *testing.T) {
	ctrlMock := gomock.NewController(t)
	defer ctrlMock.Finish()

	mockAuth := mocks.NewMockPort(ctrlMock)
	mockPwd := mocks.NewMockPasswordService(ctrlMock)
	mockRepo := mocks.NewMockAppRepo(ctrlMock)
	mockCache := mocks.NewMockCacheService(ctrlMock)
	mockS3 := mocks.NewMockS3Service(ctrlMock)
	mockEmail := mocks.NewMockEmailService(ctrlMock)

	denied := New(
		mockAuth, mockPwd, mockRepo, mockCache, mockS3, mockEmail,
		WithCSRFHook(
			func(context.Context) error {
				return errors.New("csrf check failed")
			},
		),
	)

	d := &dto.DeviceRequest{IP: "192.168.1.1", UA: "test-user-agent"}

	res, err := denied.Rotate(context.Background(), d, "old-refresh")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Nil(t, res)

	assert.ErrorIs(t, denied.Logout(context.Background(), uuid.New(), uuid.New()), ErrForbidden)
	assert.ErrorIs(t, denied.LogoutAll(context.Background(), uuid.New()), ErrForbidden)
}

func TestController_Logout(t *testing.T) {
	ctrlMock := gomock.NewController(t)
	defer ctrlMock.Finish()

	mockAuth := mocks.NewMockPort(ctrlMock)
	mockPwd := mocks.NewMockPasswordService(ctrlMock)
	mockRepo := mocks.NewMockAppRepo(ctrlMock)
	mockCache := mocks.NewMockCacheService(ctrlMock)
	mockS3 := mocks.NewMockS3Service(ctrlMock)
	mockEmail := mocks.NewMockEmailService(ctrlMock)

	ctx := context.Background()
	ctrl := New(mockAuth, mockPwd, mockRepo, mockCache, mockS3, mockEmail)

	testUserID := uuid.New()
	testJTI := uuid.New()

	tests := []struct {
		name    string
		setup   func()
		wantErr bool
		err     error
	}{
		{
			name: "Success",
			setup: func() {
				mockRepo.EXPECT().
					GetTokenByJTI(gomock.Any(), testJTI).
					Return(&models.RefreshToken{UserID: testUserID, JTI: testJTI}, nil)
				mockRepo.EXPECT().
					RevokeToken(gomock.Any(), testJTI).
					Return(nil)
			},
		},
		{
			name: "NotFound",
			setup: func() {
				mockRepo.EXPECT().
					GetTokenByJTI(gomock.Any(), testJTI).
					Return(nil, repo.ErrNotFound)
			},
			wantErr: true,
			err:     ErrNotFound,
		},
		{
			name: "ForeignSession",
			setup: func() {
				mockRepo.EXPECT().
					GetTokenByJTI(gomock.Any(), testJTI).
					Return(&models.RefreshToken{UserID: uuid.New(), JTI: testJTI}, nil)
			},
			wantErr: true,
			err:     ErrForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()

			err := ctrl.Logout(ctx, testUserID, testJTI)
			if tt.wantErr {
				assert.ErrorIs(t, err, tt.err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestController_LogoutAll(t *testing.T) {
	ctrlMock := gomock.NewController(t)
	defer ctrlMock.Finish()

	mockAuth := mocks.NewMockPort(ctrlMock)
	mockPwd := mocks.NewMockPasswordService(ctrlMock)
	mockRepo := mocks.NewMockAppRepo(ctrlMock)
	mockCache := mocks.NewMockCacheService(ctrlMock)
	mockS3 := mocks.NewMockS3Service(ctrlMock)
	mockEmail := mocks.NewMockEmailService(ctrlMock)

	ctx := context.Background()
	ctrl := New(mockAuth, mockPwd, mockRepo, mockCache, mockS3, mockEmail)

	testUserID := uuid.New()

	mockRepo.EXPECT().
		RevokeUserTokens(gomock.Any(), testUserID).
		Return(nil)

	assert.NoError(t, ctrl.LogoutAll(ctx, testUserID))
}
