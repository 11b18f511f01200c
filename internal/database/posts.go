package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/murmurnet/murmur/internal/models"
)

// CreatePost inserts a new post, assigning its id.
func (d *DB) CreatePost(ctx context.Context, post *models.Post) error {
	post.ID = uuid.New()
	err := d.pool.QueryRow(ctx,
		`INSERT INTO posts (id, creator_id, title, body, tags)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		post.ID, post.CreatorID, post.Title, post.Body, post.Tags).
		Scan(&post.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// GetPostByID loads a post with its like set and comments, or (nil, nil)
// when no row exists.
func (d *DB) GetPostByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	post := &models.Post{}
	err := d.pool.QueryRow(ctx,
		`SELECT id, creator_id, title, body, tags, share_count, created_at
		 FROM posts WHERE id = $1`, id).
		Scan(&post.ID, &post.CreatorID, &post.Title, &post.Body, &post.Tags, &post.ShareCount, &post.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan post: %w", err)
	}

	if err := d.loadPostRelations(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (d *DB) loadPostRelations(ctx context.Context, post *models.Post) error {
	likes, err := d.postLikes(ctx, post.ID)
	if err != nil {
		return err
	}
	post.Likes = likes

	comments, err := d.postComments(ctx, post.ID)
	if err != nil {
		return err
	}
	post.Comments = comments
	return nil
}

func (d *DB) postLikes(ctx context.Context, postID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT user_id FROM post_likes WHERE post_id = $1 ORDER BY created_at`, postID)
	if err != nil {
		return nil, fmt.Errorf("query post likes: %w", err)
	}
	defer rows.Close()

	likes := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan post like: %w", err)
		}
		likes = append(likes, id)
	}
	return likes, rows.Err()
}

func (d *DB) postComments(ctx context.Context, postID uuid.UUID) ([]*models.Comment, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT c.id, c.post_id, c.author_id, c.author_name, c.text, c.created_at,
		        coalesce(array_agg(cl.user_id) FILTER (WHERE cl.user_id IS NOT NULL), '{}')
		 FROM comments c
		 LEFT JOIN comment_likes cl ON cl.comment_id = c.id
		 WHERE c.post_id = $1
		 GROUP BY c.id
		 ORDER BY c.created_at`, postID)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	comments := []*models.Comment{}
	for rows.Next() {
		c := &models.Comment{}
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.AuthorName, &c.Text, &c.CreatedAt, &c.Likes); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// ListPosts returns one page of posts, newest first.
func (d *DB) ListPosts(ctx context.Context, page, perPage int) ([]*models.Post, error) {
	if page < 1 {
		page = 1
	}
	return d.queryPosts(ctx,
		`SELECT id, creator_id, title, body, tags, share_count, created_at
		 FROM posts ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		perPage, (page-1)*perPage)
}

// SearchPosts matches the query against title and body, and optionally
// requires any of the given tags.
func (d *DB) SearchPosts(ctx context.Context, query string, tags []string) ([]*models.Post, error) {
	if len(tags) > 0 {
		return d.queryPosts(ctx,
			`SELECT id, creator_id, title, body, tags, share_count, created_at
			 FROM posts
			 WHERE (title ILIKE '%' || $1 || '%' OR body ILIKE '%' || $1 || '%') AND tags && $2
			 ORDER BY created_at DESC LIMIT 50`, query, tags)
	}
	return d.queryPosts(ctx,
		`SELECT id, creator_id, title, body, tags, share_count, created_at
		 FROM posts
		 WHERE title ILIKE '%' || $1 || '%' OR body ILIKE '%' || $1 || '%'
		 ORDER BY created_at DESC LIMIT 50`, query)
}

func (d *DB) queryPosts(ctx context.Context, sql string, args ...any) ([]*models.Post, error) {
	rows, err := d.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post := &models.Post{}
		if err := rows.Scan(&post.ID, &post.CreatorID, &post.Title, &post.Body, &post.Tags,
			&post.ShareCount, &post.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, post := range posts {
		if err := d.loadPostRelations(ctx, post); err != nil {
			return nil, err
		}
	}
	return posts, nil
}

// UpdatePost writes the mutable content fields.
func (d *DB) UpdatePost(ctx context.Context, post *models.Post) error {
	_, err := d.pool.Exec(ctx,
		`UPDATE posts SET title = $2, body = $3, tags = $4 WHERE id = $1`,
		post.ID, post.Title, post.Body, post.Tags)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return nil
}

// DeletePost removes the post; likes and comments cascade.
func (d *DB) DeletePost(ctx context.Context, id uuid.UUID) error {
	_, err := d.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

// TogglePostLike flips membership of userID in the post's like set and
// reports the new state. The insert-on-conflict/delete pair is atomic per
// statement, so concurrent toggles from different users cannot lose updates.
func (d *DB) TogglePostLike(ctx context.Context, postID, userID uuid.UUID) (liked bool, err error) {
	tag, err := d.pool.Exec(ctx,
		`INSERT INTO post_likes (post_id, user_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`, postID, userID)
	if err != nil {
		return false, fmt.Errorf("insert post like: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	if _, err := d.pool.Exec(ctx,
		`DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`, postID, userID); err != nil {
		return false, fmt.Errorf("delete post like: %w", err)
	}
	return false, nil
}

// AddComment appends a comment, snapshotting the author name passed in.
func (d *DB) AddComment(ctx context.Context, comment *models.Comment) error {
	comment.ID = uuid.New()
	err := d.pool.QueryRow(ctx,
		`INSERT INTO comments (id, post_id, author_id, author_name, text)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		comment.ID, comment.PostID, comment.AuthorID, comment.AuthorName, comment.Text).
		Scan(&comment.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	if comment.Likes == nil {
		comment.Likes = []uuid.UUID{}
	}
	return nil
}

// ToggleCommentLike flips membership of userID in a comment's like set.
func (d *DB) ToggleCommentLike(ctx context.Context, commentID, userID uuid.UUID) (liked bool, err error) {
	tag, err := d.pool.Exec(ctx,
		`INSERT INTO comment_likes (comment_id, user_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`, commentID, userID)
	if err != nil {
		return false, fmt.Errorf("insert comment like: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	if _, err := d.pool.Exec(ctx,
		`DELETE FROM comment_likes WHERE comment_id = $1 AND user_id = $2`, commentID, userID); err != nil {
		return false, fmt.Errorf("delete comment like: %w", err)
	}
	return false, nil
}

// IncrementShareCount bumps the share counter atomically and returns the
// new value.
func (d *DB) IncrementShareCount(ctx context.Context, postID uuid.UUID) (int, error) {
	var count int
	err := d.pool.QueryRow(ctx,
		`UPDATE posts SET share_count = share_count + 1 WHERE id = $1 RETURNING share_count`,
		postID).Scan(&count)
	if err != nil {
		// ErrNoRows included: the caller has already confirmed the post
		// exists, so an update matching nothing is a real failure.
		return 0, fmt.Errorf("increment share count: %w", err)
	}
	return count, nil
}
