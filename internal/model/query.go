package model

// AccessQuery is the query string of the access gate.
type AccessQuery struct {
	ExamCode string `form:"examCode" binding:"required,notblank,max=50"`
}

// QuestionQuery filters the admin question listing.
type QuestionQuery struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PerPage  int    `form:"perPage" binding:"omitempty,min=1,max=100"`
	Topic    string `form:"topic" binding:"max=100"`
	ExamCode string `form:"examCode" binding:"max=50"`
}

// Filter converts the query into a repository filter.
func (q QuestionQuery) Filter() QuestionFilter {
	return QuestionFilter{Topic: q.Topic, ExamCode: q.ExamCode}
}

// ResultQuery filters result listings. UserID is honored for admins only.
type ResultQuery struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PerPage  int    `form:"perPage" binding:"omitempty,min=1,max=100"`
	UserID   int    `form:"userId" binding:"omitempty,min=1"`
	ExamCode string `form:"examCode" binding:"max=50"`
}

// Filter converts the query into a repository filter.
func (q ResultQuery) Filter() ResultFilter {
	f := ResultFilter{ExamCode: q.ExamCode}
	if q.UserID > 0 {
		id := q.UserID
		f.UserID = &id
	}
	return f
}
