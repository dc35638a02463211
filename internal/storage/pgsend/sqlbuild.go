package pgsend

import (
	"fmt"
	"strings"
)

// Сборка динамических фрагментов SQL отделена от привязки значений:
// клаузы собираются из фиксированных имён колонок, значения всегда
// уходят позиционными аргументами.

type setBuilder struct {
	cols []string
	args []any
}

func (b *setBuilder) Set(col string, v any) {
	b.args = append(b.args, v)
	b.cols = append(b.cols, fmt.Sprintf("%s = $%d", col, len(b.args)))
}

func (b *setBuilder) Empty() bool {
	return len(b.cols) == 0
}

// Clause возвращает "SET ..." и позицию следующего плейсхолдера.
func (b *setBuilder) Clause() (string, int) {
	return "SET " + strings.Join(b.cols, ", "), len(b.args) + 1
}

type whereBuilder struct {
	conds []string
	args  []any
}

func (b *whereBuilder) And(col, op string, v any) {
	b.args = append(b.args, v)
	b.conds = append(b.conds, fmt.Sprintf("%s %s $%d", col, op, len(b.args)))
}

// Clause возвращает "WHERE ..." или пустую строку, если условий нет.
func (b *whereBuilder) Clause() string {
	if len(b.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(b.conds, " AND ")
}

// Paginate добавляет LIMIT/OFFSET поверх уже накопленных аргументов.
func (b *whereBuilder) Paginate(limit, offset int) (string, []any) {
	args := append(append([]any{}, b.args...), limit, offset)
	clause := fmt.Sprintf("LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	return clause, args
}
