package telegram

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/is57/scorebot/internal/scoring"
)

// FormatTeam renders one team line.
func FormatTeam(t scoring.Team) string {
	return fmt.Sprintf("🏢 %s (здание %d) - ID: %d", t.Name, t.Building, t.ID)
}

// FormatTask renders one task line.
func FormatTask(t scoring.Task) string {
	return fmt.Sprintf("📝 %s (%s) - ID: %d", t.Name, t.Subject, t.ID)
}

// sortTeams orders teams the way the scoring admin UI does: by building,
// highest first.
func sortTeams(teams []scoring.Team) []scoring.Team {
	sorted := append([]scoring.Team(nil), teams...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Building > sorted[j].Building
	})
	return sorted
}

// sortTasks orders tasks by subject.
func sortTasks(tasks []scoring.Task) []scoring.Task {
	sorted := append([]scoring.Task(nil), tasks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Subject < sorted[j].Subject
	})
	return sorted
}

// FormatTeamList renders the /teams reply.
func FormatTeamList(teams []scoring.Team) string {
	if len(teams) == 0 {
		return "📭 Список команд пуст."
	}
	var sb strings.Builder
	sb.WriteString("👥 Список команд:\n\n")
	for _, t := range sortTeams(teams) {
		sb.WriteString(FormatTeam(t))
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatTaskList renders the /tasks reply.
func FormatTaskList(tasks []scoring.Task) string {
	if len(tasks) == 0 {
		return "📭 Список заданий пуст."
	}
	var sb strings.Builder
	sb.WriteString("📝 Список заданий:\n\n")
	for _, t := range sortTasks(tasks) {
		sb.WriteString(FormatTask(t))
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatSubjects renders the numbered subject list.
func FormatSubjects(subjects []string) string {
	var sb strings.Builder
	sb.WriteString("📚 Доступные предметы:\n\n")
	for i, s := range subjects {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, s)
	}
	return sb.String()
}

// FormatBuildings renders the building list.
func FormatBuildings(buildings []int) string {
	var sb strings.Builder
	sb.WriteString("🏢 Доступные здания:\n\n")
	for _, b := range buildings {
		fmt.Fprintf(&sb, "• Здание %d\n", b)
	}
	return sb.String()
}

// FormatResults renders every team's non-zero results and its total.
func FormatResults(teams []scoring.Team, tasks []scoring.Task, results scoring.Results) string {
	if len(teams) == 0 || len(tasks) == 0 {
		return "❌ Нет данных для отображения результатов."
	}

	sortedTasks := sortTasks(tasks)
	var sb strings.Builder
	sb.WriteString("📊 Результаты команд:\n")
	for _, team := range sortTeams(teams) {
		fmt.Fprintf(&sb, "\n🏢 %s (здание %d):\n", team.Name, team.Building)
		total := 0
		for _, task := range sortedTasks {
			points := results.Points(team.ID, task.ID)
			if points <= 0 {
				continue
			}
			fmt.Fprintf(&sb, "  • %s: %s - %d баллов\n", task.Subject, task.Name, points)
			total += points
		}
		fmt.Fprintf(&sb, "  Итого: %d баллов\n", total)
	}
	return sb.String()
}

// FormatAmbiguousTeams asks the user to narrow down a team prefix.
func FormatAmbiguousTeams(query string, names []string) string {
	return fmt.Sprintf("❌ Найдено несколько команд, начинающихся на '%s': %s. Пожалуйста, уточните название.",
		query, strings.Join(names, ", "))
}

// FormatIDList renders up to limit ids, or "Нет" when empty.
func FormatIDList(ids []int64, limit int) string {
	if len(ids) == 0 {
		return "Нет"
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}

// chunkContent splits content into messages of at most maxLen characters,
// breaking on line boundaries. A single line longer than maxLen is cut.
func chunkContent(content string, maxLen int) []string {
	if utf8.RuneCountInString(content) <= maxLen {
		return []string{content}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen == 0 {
			return
		}
		chunks = append(chunks, strings.TrimRight(current.String(), "\n"))
		current.Reset()
		currentLen = 0
	}

	for _, line := range strings.Split(content, "\n") {
		lineLen := utf8.RuneCountInString(line) + 1
		if currentLen+lineLen <= maxLen {
			current.WriteString(line)
			current.WriteString("\n")
			currentLen += lineLen
			continue
		}
		flush()

		runes := []rune(line)
		for len(runes) > maxLen {
			chunks = append(chunks, string(runes[:maxLen]))
			runes = runes[maxLen:]
		}
		if len(runes) > 0 {
			current.WriteString(string(runes))
			current.WriteString("\n")
			currentLen = len(runes) + 1
		}
	}
	flush()

	return chunks
}
