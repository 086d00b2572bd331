package model

// Course is a read-only projection of the course catalog. This service
// never mutates courses.
type Course struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Slug         string `json:"slug"`
	Price        int64  `json:"price"`
	TotalLessons int    `json:"total_lessons"`
}

// User is a read-only projection of the user account store.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// Progress is a read-only per-user per-course lesson counter maintained
// by the progress collaborator.
type Progress struct {
	UserID           int64 `json:"user_id"`
	CourseID         int64 `json:"course_id"`
	CompletedLessons int   `json:"completed_lessons"`
}
