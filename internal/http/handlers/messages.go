package handlers

var messages = map[string]map[string]string{
	"ru": {
		"validation":          "Некорректный запрос",
		"not_found":           "Сессия не найдена",
		"conflict":            "Действие недоступно в текущем статусе",
		"upstream":            "Workflow-движок не ответил",
		"storage_unavailable": "БД недоступна",
		"unauthorized":        "Требуется авторизация",
		"internal":            "Внутренняя ошибка сервера",
	},
	"en": {
		"validation":          "Invalid request",
		"not_found":           "Session not found",
		"conflict":            "Action is not allowed in the current status",
		"upstream":            "Workflow engine did not respond",
		"storage_unavailable": "Database unavailable",
		"unauthorized":        "Authorization required",
		"internal":            "Internal server error",
	},
}

func message(locale, code string) string {
	if table, ok := messages[locale]; ok {
		if m, ok := table[code]; ok {
			return m
		}
	}
	if m, ok := messages["ru"][code]; ok {
		return m
	}
	return code
}
