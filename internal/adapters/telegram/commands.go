package telegram

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/shlex"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/is57/scorebot/internal/access"
	"github.com/is57/scorebot/internal/resolve"
	"github.com/is57/scorebot/internal/scoring"
)

// ErrNotCommand is returned by ParseCommand for plain text and for commands
// addressed to another bot.
var ErrNotCommand = errors.New("not a command for this bot")

// ParsedCommand is a command name with its arguments.
type ParsedCommand struct {
	Name string
	Args []string
}

// ParseCommand splits "/name@bot arg1 "quoted arg"" into a lower-cased name
// and shell-style arguments. When the arguments cannot be split (for example
// an unclosed quote) the name is still returned together with the error.
func ParseCommand(text, botUsername string) (ParsedCommand, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ParsedCommand{}, ErrNotCommand
	}

	head, rest := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		head, rest = text[:i], text[i+1:]
	}
	name, mention, _ := strings.Cut(strings.TrimPrefix(head, "/"), "@")
	if name == "" {
		return ParsedCommand{}, ErrNotCommand
	}
	if mention != "" && botUsername != "" && !strings.EqualFold(mention, botUsername) {
		return ParsedCommand{}, ErrNotCommand
	}

	parsed := ParsedCommand{Name: strings.ToLower(name)}
	args, err := shlex.Split(rest)
	if err != nil {
		return parsed, fmt.Errorf("failed to split arguments: %w", err)
	}
	parsed.Args = args
	return parsed, nil
}

func (h *Handler) registerCommands() map[string]*command {
	setResult := &command{access.LevelMember, "Ошибка при установке результата", h.cmdSetResult}
	return map[string]*command{
		"start":     {access.LevelMember, "Ошибка", h.cmdStart},
		"help":      {access.LevelMember, "Ошибка", h.cmdHelp},
		"teams":     {access.LevelMember, "Ошибка при получении списка команд", h.cmdTeams},
		"tasks":     {access.LevelMember, "Ошибка при получении списка заданий", h.cmdTasks},
		"subjects":  {access.LevelMember, "Ошибка", h.cmdSubjects},
		"buildings": {access.LevelMember, "Ошибка", h.cmdBuildings},
		"results":   {access.LevelMember, "Ошибка при получении результатов", h.cmdResults},

		"add_team":     {access.LevelMember, "Ошибка при добавлении команды", h.cmdAddTeam},
		"remove_team":  {access.LevelMember, "Ошибка при удалении команды", h.cmdRemoveTeam},
		"add_task":     {access.LevelMember, "Ошибка при добавлении задания", h.cmdAddTask},
		"remove_task":  {access.LevelMember, "Ошибка при удалении задания", h.cmdRemoveTask},
		"choose_task":  {access.LevelMember, "Ошибка при выборе задания", h.cmdChooseTask},
		"clear_choice": {access.LevelMember, "Ошибка при очистке выбора", h.cmdClearChoice},
		"my_task":      {access.LevelMember, "Ошибка", h.cmdMyTask},
		"set_result":   setResult,
		"s":            setResult,

		"set_token":    {access.LevelAdmin, "Ошибка при сохранении токена", h.cmdSetToken},
		"add_user":     {access.LevelAdmin, "Ошибка при добавлении пользователя", h.cmdAddUser},
		"remove_user":  {access.LevelAdmin, "Ошибка при удалении пользователя", h.cmdRemoveUser},
		"add_group":    {access.LevelAdmin, "Ошибка при добавлении группы", h.cmdAddGroup},
		"remove_group": {access.LevelAdmin, "Ошибка при удалении группы", h.cmdRemoveGroup},
		"status":       {access.LevelAdmin, "Ошибка при получении статуса", h.cmdStatus},
		"set_date":     {access.LevelAdmin, "Ошибка при установке даты", h.cmdSetDate},
	}
}

const (
	msgNoToken        = "❌ API токен не установлен. Обратитесь к администратору."
	msgTeamNotFound   = "❌ Команда не найдена."
	msgTaskNotFound   = "❌ Задание не найдено."
	msgPointsNotInt   = "❌ Баллы должны быть числами."
	msgBadName        = "❌ Название %s содержит недопустимые символы. Разрешены только буквы, цифры, пробелы и тире."
	msgNotSaved       = "\n⚠️ Изменение применено, но сохранить его на диск не удалось."
	msgGroupOnly      = "❌ Эта команда работает только в группах."
	msgInvalidTokenFn = "❌ %s. Проверьте токен."
)

const welcomeText = `🤖 Добро пожаловать в IS57 Bot!

Этот бот предоставляет доступ к API is57.ru для управления командами, заданиями и результатами.

📋 Основные команды:
/help - Показать все доступные команды
/teams - Получить список команд
/tasks - Получить список заданий
/results - Показать таблицу результатов

Для получения полного списка команд используйте /help`

const helpText = `Основные правила:
 • Названия команд указываются в следующем формате: "10В Гении".
 • При вводе результатов можно указывать только начало названия команды, например "10В" будет отсылать к команде "10В Гении".
 • Если в названии команды или задания есть пробелы, используйте кавычки, например: /add_team 1 "Команда А" или /add_task математика "Линейная алгебра".

📋 Доступные команды:

🔍 Просмотр данных:
/teams - Получить список всех команд
/tasks - Получить список всех заданий
/results - Показать таблицу результатов

👥 Команды для работы с командами:
/add_team <здание> <название> - Добавить новую команду
/remove_team <название> - Удалить команду

📝 Команды для работы с заданиями:
/add_task <предмет> <название> - Добавить новое задание
/remove_task <предмет> <название> - Удалить задание
/choose_task <предмет> <название> - Выбрать задание для /set_result
/my_task - Показать выбранное задание
/clear_choice - Сбросить выбранное задание

📊 Управление результатами:
/set_result <команда> <предмет> <задание> <баллы> - Установить результат
/set_result <команда> <баллы> - Установить результат по выбранному заданию
/s - Короткая форма /set_result

📚 Справочная информация:
/subjects - Список доступных предметов
/buildings - Список доступных зданий

Пример использования:
/add_team 1 "10В Гении"
/add_task математика "Линейная алгебра"
/set_result 10В математика "Линейная алгебра" 85`

// normalizeSubject lower-cases a typed subject the way subjects are stored.
func normalizeSubject(s string) string {
	return cases.Lower(language.Russian).String(strings.TrimSpace(s))
}

// mutationFailed turns a rejected token into a user-facing reply and passes
// every other error up to the dispatcher.
func (h *Handler) mutationFailed(ctx context.Context, chatID int64, err error, what string) error {
	if errors.Is(err, scoring.ErrInvalidToken) {
		h.reply(ctx, chatID, fmt.Sprintf(msgInvalidTokenFn, what))
		return nil
	}
	return err
}

func (h *Handler) cmdStart(ctx context.Context, req *request) error {
	h.reply(ctx, req.chatID, welcomeText)
	return nil
}

func (h *Handler) cmdHelp(ctx context.Context, req *request) error {
	h.reply(ctx, req.chatID, helpText)
	return nil
}

func (h *Handler) cmdTeams(ctx context.Context, req *request) error {
	teams, err := h.api.GetTeams(ctx)
	if err != nil {
		return err
	}
	h.reply(ctx, req.chatID, FormatTeamList(teams))
	return nil
}

func (h *Handler) cmdTasks(ctx context.Context, req *request) error {
	tasks, err := h.api.GetTasks(ctx)
	if err != nil {
		return err
	}
	h.reply(ctx, req.chatID, FormatTaskList(tasks))
	return nil
}

func (h *Handler) cmdSubjects(ctx context.Context, req *request) error {
	h.reply(ctx, req.chatID, FormatSubjects(h.subjects))
	return nil
}

func (h *Handler) cmdBuildings(ctx context.Context, req *request) error {
	h.reply(ctx, req.chatID, FormatBuildings(h.buildings))
	return nil
}

func (h *Handler) cmdResults(ctx context.Context, req *request) error {
	teams, err := h.api.GetTeams(ctx)
	if err != nil {
		return err
	}
	tasks, err := h.api.GetTasks(ctx)
	if err != nil {
		return err
	}
	results, err := h.api.GetResults(ctx)
	if err != nil {
		return err
	}
	h.reply(ctx, req.chatID, FormatResults(teams, tasks, results))
	return nil
}

func (h *Handler) buildingList() string {
	parts := make([]string, len(h.buildings))
	for i, b := range h.buildings {
		parts[i] = strconv.Itoa(b)
	}
	return strings.Join(parts, ", ")
}

func (h *Handler) cmdAddTeam(ctx context.Context, req *request) error {
	if len(req.args) < 2 {
		h.reply(ctx, req.chatID, "❌ Использование: /add_team <здание> <название>\nДоступные здания: "+h.buildingList())
		return nil
	}

	building, err := strconv.Atoi(req.args[0])
	if err != nil {
		h.reply(ctx, req.chatID, "❌ Номер здания должен быть числом.")
		return nil
	}
	if !slices.Contains(h.buildings, building) {
		h.reply(ctx, req.chatID, "❌ Неверное здание. Доступные: "+h.buildingList())
		return nil
	}

	name := strings.TrimSpace(req.args[1])
	if !resolve.ValidName(name) {
		h.reply(ctx, req.chatID, fmt.Sprintf(msgBadName, "команды"))
		return nil
	}

	teams, err := h.api.GetTeams(ctx)
	if err != nil {
		return err
	}
	if _, exists := resolve.ExactTeam(teams, name); exists {
		h.reply(ctx, req.chatID, "❌ Команда с таким названием уже существует.")
		return nil
	}

	token := h.store.Token()
	if token == "" {
		h.reply(ctx, req.chatID, msgNoToken)
		return nil
	}
	if err := h.api.AddTeam(ctx, token, building, name); err != nil {
		return h.mutationFailed(ctx, req.chatID, err, "Ошибка при добавлении команды")
	}
	h.reply(ctx, req.chatID, fmt.Sprintf("✅ Команда '%s' (здание %d) успешно добавлена!", name, building))
	return nil
}

// cmdRemoveTeam deletes by exact name only; prefixes are not accepted for
// deletions.
func (h *Handler) cmdRemoveTeam(ctx context.Context, req *request) error {
	if len(req.args) < 1 {
		h.reply(ctx, req.chatID, "❌ Использование: /remove_team <название>")
		return nil
	}
	name := strings.TrimSpace(req.args[0])

	teams, err := h.api.GetTeams(ctx)
	if err != nil {
		return err
	}
	team, ok := resolve.ExactTeam(teams, name)
	if !ok {
		h.reply(ctx, req.chatID, msgTeamNotFound)
		return nil
	}

	token := h.store.Token()
	if token == "" {
		h.reply(ctx, req.chatID, msgNoToken)
		return nil
	}
	if err := h.api.RemoveTeam(ctx, token, team.ID); err != nil {
		return h.mutationFailed(ctx, req.chatID, err, "Ошибка при удалении команды")
	}
	h.reply(ctx, req.chatID, fmt.Sprintf("✅ Команда '%s' успешно удалена!", name))
	return nil
}

func (h *Handler) cmdAddTask(ctx context.Context, req *request) error {
	if len(req.args) < 2 {
		preview := h.subjects
		if len(preview) > 5 {
			preview = preview[:5]
		}
		h.reply(ctx, req.chatID, "❌ Использование: /add_task <предмет> <название>\nДоступные предметы: "+
			strings.Join(preview, ", ")+"...")
		return nil
	}

	subject := normalizeSubject(req.args[0])
	if !slices.Contains(h.subjects, subject) {
		h.reply(ctx, req.chatID, "❌ Неверный предмет. Используйте /subjects.")
		return nil
	}

	name := strings.TrimSpace(req.args[1])
	if !resolve.ValidName(name) {
		h.reply(ctx, req.chatID, fmt.Sprintf(msgBadName, "задания"))
		return nil
	}

	tasks, err := h.api.GetTasks(ctx)
	if err != nil {
		return err
	}
	if resolve.FindTask(tasks, name, subject).Found() {
		h.reply(ctx, req.chatID, "❌ Задание с таким названием уже существует.")
		return nil
	}

	token := h.store.Token()
	if token == "" {
		h.reply(ctx, req.chatID, msgNoToken)
		return nil
	}
	if err := h.api.AddTask(ctx, token, subject, name); err != nil {
		return h.mutationFailed(ctx, req.chatID, err, "Ошибка при добавлении задания")
	}
	h.reply(ctx, req.chatID, fmt.Sprintf("✅ Задание '%s' по предмету '%s' добавлено!", name, subject))
	return nil
}

// lookupTask resolves "<subject> <name>" arguments against a fresh task list.
func (h *Handler) lookupTask(ctx context.Context, args []string) (resolve.Result[scoring.Task], error) {
	tasks, err := h.api.GetTasks(ctx)
	if err != nil {
		return resolve.Result[scoring.Task]{}, err
	}
	return resolve.FindTask(tasks, strings.TrimSpace(args[1]), normalizeSubject(args[0])), nil
}

func (h *Handler) cmdRemoveTask(ctx context.Context, req *request) error {
	if len(req.args) < 2 {
		h.reply(ctx, req.chatID, "❌ Использование: /remove_task <предмет> <название>")
		return nil
	}

	task, err := h.lookupTask(ctx, req.args)
	if err != nil {
		return err
	}
	if !task.Found() {
		h.reply(ctx, req.chatID, msgTaskNotFound)
		return nil
	}

	token := h.store.Token()
	if token == "" {
		h.reply(ctx, req.chatID, msgNoToken)
		return nil
	}
	if err := h.api.RemoveTask(ctx, token, task.Match.ID); err != nil {
		return h.mutationFailed(ctx, req.chatID, err, "Ошибка при удалении задания")
	}
	h.reply(ctx, req.chatID, fmt.Sprintf("✅ Задание '%s' успешно удалено!", task.Match.Name))
	return nil
}

func (h *Handler) cmdChooseTask(ctx context.Context, req *request) error {
	if len(req.args) < 2 {
		h.reply(ctx, req.chatID, "❌ Использование: /choose_task <предмет> <название>")
		return nil
	}

	task, err := h.lookupTask(ctx, req.args)
	if err != nil {
		return err
	}
	if !task.Found() {
		h.reply(ctx, req.chatID, msgTaskNotFound)
		return nil
	}

	text := fmt.Sprintf("✅ Вы выбрали задание: %s (%s). Теперь можно использовать /set_result <команда> <баллы>",
		task.Match.Name, task.Match.Subject)
	if err := h.selections.Set(req.userID, task.Match); err != nil {
		text += msgNotSaved
	}
	h.reply(ctx, req.chatID, text)
	return nil
}

func (h *Handler) cmdClearChoice(ctx context.Context, req *request) error {
	text := "✅ Выбор задания очищен."
	if err := h.selections.Clear(req.userID); err != nil {
		text += msgNotSaved
	}
	h.reply(ctx, req.chatID, text)
	return nil
}

func (h *Handler) cmdMyTask(ctx context.Context, req *request) error {
	sel, ok := h.selections.Get(req.userID)
	if !ok {
		h.reply(ctx, req.chatID, "📭 Задание не выбрано. Используйте /choose_task <предмет> <название>.")
		return nil
	}
	h.reply(ctx, req.chatID, fmt.Sprintf("📝 Выбранное задание: %s (%s) - ID: %d", sel.Name, sel.Subject, sel.TaskID))
	return nil
}

// cmdSetResult accepts either "<team> <subject> <task> <points>" or
// "<team> <points>", the latter using the caller's chosen task. The team may
// be given as a unique prefix of its name.
func (h *Handler) cmdSetResult(ctx context.Context, req *request) error {
	if len(req.args) < 2 {
		h.reply(ctx, req.chatID, "❌ Использование: /set_result <команда> <предмет> <задание> <баллы>\n"+
			"или: /set_result <команда> <баллы> если вы ранее выбрали задание через /choose_task")
		return nil
	}

	teamQuery := strings.TrimSpace(req.args[0])
	var subject, taskName, pointsArg string
	if len(req.args) == 2 {
		sel, ok := h.selections.Get(req.userID)
		if !ok {
			h.reply(ctx, req.chatID, "❌ Вы не указали предмет/задание и не выбрали задание. "+
				"Используйте: /set_result <команда> <предмет> <задание> <баллы> или выберите задание через /choose_task")
			return nil
		}
		subject, taskName, pointsArg = sel.Subject, sel.Name, req.args[1]
	} else {
		if len(req.args) < 4 {
			h.reply(ctx, req.chatID, msgPointsNotInt)
			return nil
		}
		subject, taskName, pointsArg = normalizeSubject(req.args[1]), strings.TrimSpace(req.args[2]), req.args[3]
	}

	points, err := strconv.Atoi(pointsArg)
	if err != nil {
		h.reply(ctx, req.chatID, msgPointsNotInt)
		return nil
	}

	teams, err := h.api.GetTeams(ctx)
	if err != nil {
		return err
	}
	tasks, err := h.api.GetTasks(ctx)
	if err != nil {
		return err
	}

	team := resolve.FindTeam(teams, teamQuery)
	if team.Kind == resolve.Ambiguous {
		h.reply(ctx, req.chatID, FormatAmbiguousTeams(teamQuery, resolve.CandidateNames(team)))
		return nil
	}
	task := resolve.FindTask(tasks, taskName, subject)
	if !task.Found() {
		h.reply(ctx, req.chatID, msgTaskNotFound)
		return nil
	}
	if !team.Found() {
		h.reply(ctx, req.chatID, msgTeamNotFound)
		return nil
	}

	token := h.store.Token()
	if token == "" {
		h.reply(ctx, req.chatID, msgNoToken)
		return nil
	}
	if err := h.api.SetResult(ctx, token, team.Match.ID, task.Match.ID, points); err != nil {
		return h.mutationFailed(ctx, req.chatID, err, "Ошибка при установке результата")
	}
	h.reply(ctx, req.chatID, fmt.Sprintf("✅ Результат установлен!\nКоманда: %s\nЗадание: %s (%s)\nБаллы: %d",
		team.Match.Name, task.Match.Name, task.Match.Subject, points))
	return nil
}

func (h *Handler) cmdSetToken(ctx context.Context, req *request) error {
	if len(req.args) < 1 {
		h.reply(ctx, req.chatID, "❌ Укажите токен: /set_token <токен>")
		return nil
	}
	if err := h.store.SetToken(req.args[0]); err != nil {
		h.reply(ctx, req.chatID, "✅ API токен установлен."+msgNotSaved)
		return nil
	}
	h.reply(ctx, req.chatID, "✅ API токен успешно сохранен!")
	return nil
}

func parseID(arg string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	return id, err == nil
}

func (h *Handler) cmdAddUser(ctx context.Context, req *request) error {
	if len(req.args) < 1 {
		h.reply(ctx, req.chatID, "❌ Укажите ID пользователя: /add_user <user_id>")
		return nil
	}
	userID, ok := parseID(req.args[0])
	if !ok {
		h.reply(ctx, req.chatID, "❌ ID пользователя должен быть числом.")
		return nil
	}

	text := fmt.Sprintf("✅ Пользователь %d добавлен в разрешенные!", userID)
	if err := h.store.AddUser(userID); err != nil {
		text += msgNotSaved
	}
	h.reply(ctx, req.chatID, text)
	return nil
}

func (h *Handler) cmdRemoveUser(ctx context.Context, req *request) error {
	if len(req.args) < 1 {
		h.reply(ctx, req.chatID, "❌ Укажите ID пользователя: /remove_user <user_id>")
		return nil
	}
	userID, ok := parseID(req.args[0])
	if !ok {
		h.reply(ctx, req.chatID, "❌ ID пользователя должен быть числом.")
		return nil
	}

	text := fmt.Sprintf("✅ Пользователь %d удален из разрешенных!", userID)
	if err := h.store.RemoveUser(userID); err != nil {
		text += msgNotSaved
	}
	h.reply(ctx, req.chatID, text)
	return nil
}

func (h *Handler) cmdAddGroup(ctx context.Context, req *request) error {
	if access.IsPrivateChat(req.chatID) {
		h.reply(ctx, req.chatID, msgGroupOnly)
		return nil
	}
	text := "✅ Эта группа добавлена в разрешенные!"
	if err := h.store.AddGroup(req.chatID); err != nil {
		text += msgNotSaved
	}
	h.reply(ctx, req.chatID, text)
	return nil
}

func (h *Handler) cmdRemoveGroup(ctx context.Context, req *request) error {
	if access.IsPrivateChat(req.chatID) {
		h.reply(ctx, req.chatID, msgGroupOnly)
		return nil
	}
	text := "✅ Эта группа удалена из разрешенных!"
	if err := h.store.RemoveGroup(req.chatID); err != nil {
		text += msgNotSaved
	}
	h.reply(ctx, req.chatID, text)
	return nil
}

func (h *Handler) cmdStatus(ctx context.Context, req *request) error {
	users := h.store.AllowedUsers()
	groups := h.store.AllowedGroups()

	token := "❌ Не установлен"
	if h.store.Token() != "" {
		token = "✅ Установлен"
	}

	var sb strings.Builder
	sb.WriteString("🤖 Статус бота:\n\n")
	fmt.Fprintf(&sb, "API токен: %s\n\n", token)
	fmt.Fprintf(&sb, "Разрешенные пользователи: %d\n%s\n\n", len(users), FormatIDList(users, 10))
	fmt.Fprintf(&sb, "Разрешенные группы: %d\n%s\n\n", len(groups), FormatIDList(groups, 10))
	fmt.Fprintf(&sb, "Выбранных заданий: %d\n\n", h.selections.Len())
	fmt.Fprintf(&sb, "Администратор: %d", h.store.AdminID())
	h.reply(ctx, req.chatID, sb.String())
	return nil
}

func (h *Handler) cmdSetDate(ctx context.Context, req *request) error {
	if len(req.args) < 1 {
		h.reply(ctx, req.chatID, "❌ Использование: /set_date <значение>")
		return nil
	}
	token := h.store.Token()
	if token == "" {
		h.reply(ctx, req.chatID, msgNoToken)
		return nil
	}
	value := strings.Join(req.args, " ")
	if err := h.api.SetDate(ctx, token, value); err != nil {
		return h.mutationFailed(ctx, req.chatID, err, "Ошибка при установке даты")
	}
	h.reply(ctx, req.chatID, fmt.Sprintf("✅ Дата установлена: %s", value))
	return nil
}
