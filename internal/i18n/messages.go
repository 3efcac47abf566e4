package i18n

var tables = map[Language]map[string]string{
	English: {
		"title":    "Code Editor",
		"subtitle": "Professional HTML/CSS/JavaScript Editor",

		"tabs.html":       "HTML",
		"tabs.css":        "CSS / SCSS",
		"tabs.javascript": "JavaScript / TypeScript",

		"toolbar.save":     "Save Project",
		"toolbar.load":     "Load Project",
		"toolbar.download": "Download ZIP",
		"toolbar.undo":     "Undo",
		"toolbar.redo":     "Redo",
		"toolbar.format":   "Format Code",
		"toolbar.search":   "Search & Replace",

		"editor.theme":      "Theme",
		"editor.fontSize":   "Font Size",
		"editor.fontFamily": "Font Family",
		"editor.lightMode":  "Light",
		"editor.darkMode":   "Dark",

		"sounds.title":      "Keyboard Sounds",
		"sounds.type":       "Sound Type",
		"sounds.mechanical": "Mechanical",
		"sounds.soft":       "Soft",
		"sounds.classic":    "Classic",
		"sounds.volume":     "Volume",
		"sounds.mute":       "Mute",

		"autoTyping.title":  "Auto-Typing",
		"autoTyping.code":   "Enter Code",
		"autoTyping.speed":  "Speed (chars/sec)",
		"autoTyping.target": "Target",
		"autoTyping.play":   "Play",
		"autoTyping.pause":  "Pause",
		"autoTyping.stop":   "Stop",

		"preview.title":     "Live Preview",
		"preview.libraries": "Libraries & CDN",
		"preview.degraded":  "Preview unavailable",

		"messages.saved":           "Project saved successfully",
		"messages.loaded":          "Project loaded successfully",
		"messages.downloaded":      "Project downloaded successfully",
		"messages.error":           "An error occurred",
		"messages.selectProject":   "Select a project to load",
		"messages.emptyScript":     "Please enter code to auto-type",
		"messages.typingCompleted": "Auto-typing completed",
	},
	Arabic: {
		"title":    "محرر الأكواد",
		"subtitle": "محرر HTML/CSS/JavaScript احترافي",

		"tabs.html":       "HTML",
		"tabs.css":        "CSS / SCSS",
		"tabs.javascript": "JavaScript / TypeScript",

		"toolbar.save":     "حفظ المشروع",
		"toolbar.load":     "تحميل المشروع",
		"toolbar.download": "تنزيل ZIP",
		"toolbar.undo":     "تراجع",
		"toolbar.redo":     "إعادة",
		"toolbar.format":   "تنسيق الكود",
		"toolbar.search":   "بحث واستبدال",

		"editor.theme":      "المظهر",
		"editor.fontSize":   "حجم الخط",
		"editor.fontFamily": "نوع الخط",
		"editor.lightMode":  "فاتح",
		"editor.darkMode":   "داكن",

		"sounds.title":      "أصوات لوحة المفاتيح",
		"sounds.type":       "نوع الصوت",
		"sounds.mechanical": "ميكانيكي",
		"sounds.soft":       "ناعم",
		"sounds.classic":    "كلاسيكي",
		"sounds.volume":     "مستوى الصوت",
		"sounds.mute":       "كتم الصوت",

		"autoTyping.title":  "الكتابة التلقائية",
		"autoTyping.code":   "أدخل الكود",
		"autoTyping.speed":  "السرعة (حروف/ثانية)",
		"autoTyping.target": "الهدف",
		"autoTyping.play":   "تشغيل",
		"autoTyping.pause":  "إيقاف مؤقت",
		"autoTyping.stop":   "إيقاف",

		"preview.title":     "المعاينة المباشرة",
		"preview.libraries": "المكتبات و CDN",
		"preview.degraded":  "المعاينة غير متاحة",

		"messages.saved":           "تم حفظ المشروع بنجاح",
		"messages.loaded":          "تم تحميل المشروع بنجاح",
		"messages.downloaded":      "تم تنزيل المشروع بنجاح",
		"messages.error":           "حدث خطأ",
		"messages.selectProject":   "اختر مشروعًا لتحميله",
		"messages.emptyScript":     "الرجاء إدخال كود للكتابة التلقائية",
		"messages.typingCompleted": "اكتملت الكتابة التلقائية",
	},
}
