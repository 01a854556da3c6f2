package core

import "fmt"

var (
	Courses   = []string{"B.Tech", "BCA", "MCA", "M.Tech"}
	Branches  = []string{"Computer Science", "Information Technology", "Electronics", "Mechanical"}
	Semesters = []string{"1st", "2nd", "3rd", "4th", "5th", "6th", "7th", "8th"}
)

// Scope is the (course, branch, semester) triple every piece of content belongs to.
type Scope struct {
	Course   string `json:"course" query:"course" form:"course" validate:"required,course"`
	Branch   string `json:"branch" query:"branch" form:"branch" validate:"required,branch"`
	Semester string `json:"semester" query:"semester" form:"semester" validate:"required,semester"`
}

func (s *Scope) Clean() {
	s.Course = CleanString(s.Course)
	s.Branch = CleanString(s.Branch)
	s.Semester = CleanString(s.Semester)
}

// Matches reports whether other falls within s; empty fields of s match anything.
func (s Scope) Matches(other Scope) bool {
	return (s.Course == "" || s.Course == other.Course) &&
		(s.Branch == "" || s.Branch == other.Branch) &&
		(s.Semester == "" || s.Semester == other.Semester)
}

func (s Scope) String() string {
	return fmt.Sprintf("%s - %s (%s Semester)", s.Course, s.Branch, s.Semester)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
