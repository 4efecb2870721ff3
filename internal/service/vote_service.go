package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/uwazi254/uwazi-api/internal/models"
	appErrors "github.com/uwazi254/uwazi-api/pkg/errors"
)

type voteIssueFinder interface {
	FindByID(ctx context.Context, id string) (*models.Issue, error)
}

type voteRepository interface {
	Cast(ctx context.Context, issueID, userID string, voteType models.VoteType) (models.VoteOutcome, error)
	Find(ctx context.Context, issueID, userID string) (*models.IssueVote, error)
}

// VoteService implements the upvote/downvote toggle over issues.
type VoteService struct {
	issues voteIssueFinder
	votes  voteRepository
	logger *zap.Logger
}

// NewVoteService creates an instance of VoteService.
func NewVoteService(issues voteIssueFinder, votes voteRepository, logger *zap.Logger) *VoteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VoteService{issues: issues, votes: votes, logger: logger}
}

// Cast records, switches or removes the caller's vote on an issue.
// Same direction twice toggles the vote off; the opposite direction switches
// it, moving both counters in one atomic step.
func (s *VoteService) Cast(ctx context.Context, issueID, userID string, voteType models.VoteType) (models.VoteOutcome, error) {
	if !models.ValidVoteType(voteType) {
		return "", appErrors.Clone(appErrors.ErrValidation, "invalid vote type")
	}

	if _, err := s.issues.FindByID(ctx, issueID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "issue not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load issue")
	}

	outcome, err := s.votes.Cast(ctx, issueID, userID, voteType)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cast vote")
	}

	s.logger.Debug("vote cast",
		zap.String("issue_id", issueID),
		zap.String("user_id", userID),
		zap.String("vote_type", string(voteType)),
		zap.String("outcome", string(outcome)),
	)
	return outcome, nil
}
