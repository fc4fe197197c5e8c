package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/m2l-store/api/internal/platform/auth"
	"github.com/m2l-store/api/internal/platform/storage"
	"github.com/m2l-store/api/internal/repositories"
)

const (
	proofUploadExpiry   = 10 * time.Minute
	proofDownloadExpiry = 5 * time.Minute
	proofMaxSizeBytes   = 5 << 20
)

var proofContentTypes = []string{"image/jpeg", "image/png", "image/webp", "application/pdf"}

// ProofUploadCommand requests a pre-signed upload slot for a transfer proof.
type ProofUploadCommand struct {
	UserID      string
	FileName    string
	ContentType string
}

// ProofUploadGrant is a pre-signed PUT the client uploads the proof with.
// ProofURL is the durable object URL to submit with the order.
type ProofUploadGrant struct {
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers,omitempty"`
	ProofURL  string            `json:"proofUrl"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// ProofViewGrant is a short-lived read URL for a stored proof.
type ProofViewGrant struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ProofService issues signed URLs for manual-transfer proof objects.
type ProofService interface {
	IssueUploadURL(ctx context.Context, cmd ProofUploadCommand) (ProofUploadGrant, error)
	// IssueViewURL signs a read URL for the proof attached to an order. The
	// caller must own the order or be an admin.
	IssueViewURL(ctx context.Context, userID string, admin bool, orderID string) (ProofViewGrant, error)
}

// ProofServiceDeps bundles the proof service dependencies.
type ProofServiceDeps struct {
	Signer *storage.Client
	Bucket string
	Orders repositories.OrderRepository

	// NewUploadID defaults to ULID generation.
	NewUploadID func() string
}

type proofService struct {
	signer      *storage.Client
	bucket      string
	orders      repositories.OrderRepository
	newUploadID func() string
}

// NewProofService constructs the proof service.
func NewProofService(deps ProofServiceDeps) (ProofService, error) {
	if deps.Signer == nil {
		return nil, errors.New("proof service: signer is required")
	}
	if strings.TrimSpace(deps.Bucket) == "" {
		return nil, errors.New("proof service: bucket is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("proof service: order repository is required")
	}
	svc := &proofService{
		signer:      deps.Signer,
		bucket:      strings.TrimSpace(deps.Bucket),
		orders:      deps.Orders,
		newUploadID: deps.NewUploadID,
	}
	if svc.newUploadID == nil {
		svc.newUploadID = func() string { return strings.ToLower(ulid.Make().String()) }
	}
	return svc, nil
}

func (s *proofService) IssueUploadURL(ctx context.Context, cmd ProofUploadCommand) (ProofUploadGrant, error) {
	if strings.TrimSpace(cmd.UserID) == "" {
		return ProofUploadGrant{}, validationError("user is required")
	}
	if strings.TrimSpace(cmd.ContentType) == "" {
		return ProofUploadGrant{}, validationError("contentType is required")
	}

	object, err := storage.BuildObjectPath(storage.PurposeProof, storage.PathParams{
		UserID:   cmd.UserID,
		UploadID: s.newUploadID(),
		FileName: safeProofFileName(cmd.FileName),
	})
	if err != nil {
		return ProofUploadGrant{}, validationError(err.Error())
	}

	result, err := s.signer.SignedURL(ctx, s.bucket, object, storage.SignedURLOptions{
		Upload: &storage.UploadOptions{
			Method:              http.MethodPut,
			ContentType:         cmd.ContentType,
			AllowedContentTypes: proofContentTypes,
			MaxSize:             proofMaxSizeBytes,
			ExpiresIn:           proofUploadExpiry,
		},
	})
	if err != nil {
		if errors.Is(err, storage.ErrPermissionDenied) {
			return ProofUploadGrant{}, NewError(CodeForbidden, "not allowed", http.StatusForbidden)
		}
		return ProofUploadGrant{}, validationError("unable to sign upload: " + err.Error())
	}

	return ProofUploadGrant{
		URL:       result.URL,
		Method:    result.Method,
		Headers:   result.Headers,
		ProofURL:  fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, object),
		ExpiresAt: result.ExpiresAt,
	}, nil
}

func (s *proofService) IssueViewURL(ctx context.Context, userID string, admin bool, orderID string) (ProofViewGrant, error) {
	if strings.TrimSpace(orderID) == "" {
		return ProofViewGrant{}, validationError("order id is required")
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return ProofViewGrant{}, mapOrderRepoError(err)
	}
	if !admin && order.UserID != userID {
		return ProofViewGrant{}, NewError(CodeForbidden, "order belongs to another user", http.StatusForbidden)
	}
	if order.Yape == nil || strings.TrimSpace(order.Yape.ProofURL) == "" {
		return ProofViewGrant{}, NewError(CodeValidation, "order has no transfer proof", http.StatusNotFound)
	}

	object, ok := s.objectFromProofURL(order.Yape.ProofURL)
	if !ok {
		return ProofViewGrant{}, NewError(CodeValidation, "proof is stored outside the configured bucket", http.StatusConflict)
	}

	result, err := s.signer.SignedURL(ctx, s.bucket, object, storage.SignedURLOptions{
		Download: &storage.DownloadOptions{
			ExpiresIn: proofDownloadExpiry,
			OwnerID:   order.UserID,
			Identity:  &auth.Identity{UID: userID, Admin: admin},
		},
	})
	if err != nil {
		if errors.Is(err, storage.ErrPermissionDenied) {
			return ProofViewGrant{}, NewError(CodeForbidden, "not allowed", http.StatusForbidden)
		}
		return ProofViewGrant{}, internalError("unable to sign proof url", err)
	}

	return ProofViewGrant{URL: result.URL, ExpiresAt: result.ExpiresAt}, nil
}

// objectFromProofURL recovers the object path from the durable URL issued at
// upload time. Proofs hosted elsewhere cannot be re-signed.
func (s *proofService) objectFromProofURL(proofURL string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(proofURL))
	if err != nil {
		return "", false
	}
	prefix := "/" + s.bucket + "/"
	if parsed.Host != "storage.googleapis.com" || !strings.HasPrefix(parsed.Path, prefix) {
		return "", false
	}
	object := strings.TrimPrefix(parsed.Path, prefix)
	if object == "" {
		return "", false
	}
	return object, true
}

func safeProofFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "proof"
	}
	name = strings.ReplaceAll(name, "\\", "-")
	name = strings.ReplaceAll(name, "/", "-")
	name = strings.ReplaceAll(name, "..", "-")
	return name
}
