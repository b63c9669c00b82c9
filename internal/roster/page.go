package roster

// DefaultWindow is the number of page buttons shown by PageWindow.
const DefaultWindow = 7

// Page is one page of rows.
type Page struct {
	Rows       []Row `json:"rows"`
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	TotalRows  int   `json:"total_rows"`
	TotalPages int   `json:"total_pages"`
	Window     []int `json:"window"`
}

// Paginate cuts rows into pages of size and returns the requested one. There
// is always at least one page; page is clamped into [1, TotalPages] and a
// non-positive size selects 25.
func Paginate(rows []Row, page, size int) Page {
	if size <= 0 {
		size = 25
	}
	total := len(rows)
	totalPages := (total + size - 1) / size
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * size
	end := min(start+size, total)
	out := []Row{}
	if start < end {
		out = rows[start:end]
	}

	return Page{
		Rows:       out,
		Page:       page,
		Size:       size,
		TotalRows:  total,
		TotalPages: totalPages,
		Window:     PageWindow(page, totalPages, DefaultWindow),
	}
}

// PageWindow returns up to maxButtons consecutive page numbers centred on
// page where possible and kept within [1, totalPages].
func PageWindow(page, totalPages, maxButtons int) []int {
	if totalPages < 1 || maxButtons < 1 {
		return []int{}
	}
	start := max(1, page-maxButtons/2)
	end := start + maxButtons - 1
	if end > totalPages {
		end = totalPages
		start = max(1, end-maxButtons+1)
	}
	out := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, i)
	}
	return out
}
