package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/comment"
)

type commentRepository struct {
	db    *commentTable
	users *userTable
	sols  *solutionTable
}

var _ comment.Repository = (*commentRepository)(nil) // interface compliance check

func NewCommentRepository(db *DB) comment.Repository {
	return &commentRepository{db: db.comment, users: db.user, sols: db.solution}
}

func (repo *commentRepository) GetOrCreateCommentText(ctx context.Context, text, linterKey string) (comment.CommentText, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, ct := range repo.db.texts {
		if ct.Text == text {
			return *ct, nil
		}
	}
	ct := comment.CommentText{
		ID:        uuid.New().String(),
		Text:      text,
		LinterKey: null.NewString(linterKey, linterKey != ""),
	}
	repo.db.texts[ct.ID] = &ct
	return ct, nil
}

func (repo *commentRepository) CreateComment(ctx context.Context, cmt comment.Comment) (comment.Comment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	cmt.ID = uuid.New().String()
	repo.db.table[cmt.ID] = &cmt
	return cmt, nil
}

func (repo *commentRepository) QueryComments(ctx context.Context, solutionID string) ([]comment.Comment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var comments []comment.Comment
	for _, cmt := range repo.db.table {
		if cmt.SolutionID != solutionID {
			continue
		}
		c := *cmt
		if text, ok := repo.db.texts[c.TextID]; ok {
			c.Text = text.Text
		}
		c.AuthorName = repo.authorName(c.CommenterID)
		comments = append(comments, c)
	}
	sort.Slice(comments, func(i, j int) bool {
		if comments[i].LineNumber != comments[j].LineNumber {
			return comments[i].LineNumber < comments[j].LineNumber
		}
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	return comments, nil
}

func (repo *commentRepository) authorName(commenterID string) string {
	if commenterID == "" {
		return ""
	}
	repo.users.RLock()
	defer repo.users.RUnlock()

	if usr, ok := repo.users.table[commenterID]; ok {
		return usr.Name
	}
	return ""
}

func (repo *commentRepository) DeleteComment(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return comment.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}

func (repo *commentRepository) CommonCommentTexts(ctx context.Context, exerciseID string, limit int) ([]comment.CommentText, error) {
	// solution lock before comment lock, same order as the queue selector
	var inExercise map[string]bool
	if exerciseID != "" {
		inExercise = repo.solutionsInExercise(exerciseID)
	}

	repo.db.RLock()
	defer repo.db.RUnlock()

	uses := make(map[string]int)
	for _, cmt := range repo.db.table {
		if cmt.IsAuto {
			continue
		}
		if exerciseID != "" && !inExercise[cmt.SolutionID] {
			continue
		}
		uses[cmt.TextID]++
	}

	var texts []comment.CommentText
	for textID, count := range uses {
		if count == 0 {
			continue
		}
		if ct, ok := repo.db.texts[textID]; ok {
			texts = append(texts, *ct)
		}
	}
	sort.Slice(texts, func(i, j int) bool {
		if uses[texts[i].ID] != uses[texts[j].ID] {
			return uses[texts[i].ID] > uses[texts[j].ID]
		}
		return texts[i].Text < texts[j].Text
	})
	if limit > 0 && len(texts) > limit {
		texts = texts[:limit]
	}
	return texts, nil
}

func (repo *commentRepository) solutionsInExercise(exerciseID string) map[string]bool {
	repo.sols.RLock()
	defer repo.sols.RUnlock()

	ids := make(map[string]bool)
	for id, sol := range repo.sols.table {
		if sol.ExerciseID == exerciseID {
			ids[id] = true
		}
	}
	return ids
}
