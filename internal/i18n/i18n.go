// Package i18n holds the user-facing message catalogue. Codes that have no
// translation are returned unchanged.
package i18n

import (
	"context"
	"net/http"
	"strings"
)

// DefaultLang is used when nothing better is known.
const DefaultLang = "ar"

type ctxKey struct{}

var messages = map[string]map[string]string{
	"ar": {
		"required":              "هذا الحقل مطلوب",
		"must_be_positive":      "يجب أن تكون القيمة أكبر من صفر",
		"must_not_be_negative":  "لا يمكن أن تكون القيمة سالبة",
		"out_of_range":          "القيمة خارج النطاق المسموح",
		"invalid_choice":        "قيمة غير مسموحة",
		"table_required":        "الرجاء إدخال رقم الطاولة",
		"customer_required":     "الرجاء اختيار العميل",
		"unknown_menu_item":     "الصنف غير موجود في القائمة",
		"INVALID_CODE":          "كود التفعيل غير صالح. يرجى التحقق منه والمحاولة مرة أخرى.",
		"ALREADY_USED":          "هذا الكود تم استخدامه مسبقاً لتفعيل مطعم آخر.",
		"NOT_FOUND":             "المطعم غير موجود",
		"INVALID_STATE":         "لا يمكن تنفيذ العملية في حالة المطعم الحالية",
		"STORAGE_ERROR":         "تعذر حفظ البيانات",
		"invalid_credentials":   "اسم المستخدم أو كلمة المرور غير صحيحة.",
		"invalid_backup":        "ملف النسخة الاحتياطية غير صالح أو تالف.",
		"subscription_expired":  "انتهى اشتراك المطعم",
		"already_configured":    "تم إنشاء حساب المدير مسبقاً",
		"immutable_permissions": "لا يمكن تعديل صلاحيات المدير أو المالك",
		"not_found":             "العنصر غير موجود",
		"forbidden":             "ليس لديك صلاحية لهذه العملية",
		"unauthorized":          "يجب تسجيل الدخول أولاً",
		"no_restaurant":         "لم يتم اختيار مطعم",
		"driver_required":       "يجب إسناد الطلب إلى سائق أولاً",
		"not_delivery":          "الطلب ليس طلب توصيل",
		"order_served":          "الطلب مكتمل ولا يمكن تعديله",
		"illegal_transition":    "لا يمكن الانتقال إلى هذه الحالة",
		"bad_request":           "طلب غير صالح",
		"payload_too_large":     "حجم البيانات المرسلة كبير جداً",
		"internal_error":        "حدث خطأ غير متوقع",
		"not_selectable":        "المطعم غير مفعل",
		"login_closed":          "لا يمكن تسجيل الدخول في حالة المطعم الحالية",
		"not_pending":           "المطعم ليس بانتظار إنشاء حساب المدير",
		"unknown_supplier":      "المورد غير موجود",
		"duplicate":             "القيمة مستخدمة مسبقاً",
		"invalid_status":        "حالة الطلب غير معروفة",
		"driver_not_found":      "السائق غير موجود",
		"method_not_allowed":    "الطريقة غير مسموحة",
		"validation_failed":     "البيانات المدخلة غير صالحة",
	},
	"en": {
		"required":              "Required",
		"must_be_positive":      "Must be greater than zero",
		"must_not_be_negative":  "Must not be negative",
		"out_of_range":          "Out of range",
		"invalid_choice":        "Invalid choice",
		"table_required":        "Table number is required for dine-in orders",
		"customer_required":     "A customer is required for delivery orders",
		"unknown_menu_item":     "Unknown menu item",
		"INVALID_CODE":          "Invalid activation code. Check it and try again.",
		"ALREADY_USED":          "This code has already been used to activate a restaurant.",
		"NOT_FOUND":             "Restaurant not found",
		"INVALID_STATE":         "Not allowed in the restaurant's current state",
		"STORAGE_ERROR":         "Could not save data",
		"invalid_credentials":   "Wrong username or password.",
		"invalid_backup":        "The backup file is invalid or corrupted.",
		"subscription_expired":  "The restaurant subscription has expired",
		"already_configured":    "The admin account already exists",
		"immutable_permissions": "Owner and admin permissions cannot be changed",
		"not_found":             "Not found",
		"forbidden":             "You are not allowed to do this",
		"unauthorized":          "Please log in first",
		"no_restaurant":         "No restaurant selected",
		"driver_required":       "Assign a driver first",
		"not_delivery":          "Not a delivery order",
		"order_served":          "The order is already served",
		"illegal_transition":    "Illegal status transition",
		"bad_request":           "Bad request",
		"payload_too_large":     "The request body is too large",
		"internal_error":        "Unexpected error",
		"not_selectable":        "The restaurant is not activated",
		"login_closed":          "Login is not possible in the restaurant's current state",
		"not_pending":           "The restaurant is not awaiting admin creation",
		"unknown_supplier":      "Unknown supplier",
		"duplicate":             "Already in use",
		"invalid_status":        "Unknown order status",
		"driver_not_found":      "Driver not found",
		"method_not_allowed":    "Method not allowed",
		"validation_failed":     "The submitted data is invalid",
	},
}

// T translates code for lang, falling back to the default language, then to the code.
func T(lang, code string) string {
	if m, ok := messages[lang]; ok {
		if s, ok := m[code]; ok {
			return s
		}
	}
	if s, ok := messages[DefaultLang][code]; ok {
		return s
	}
	return code
}

// DetectLanguage picks a supported language from an Accept-Language header.
func DetectLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		base := strings.ToLower(strings.SplitN(tag, "-", 2)[0])
		if _, ok := messages[base]; ok {
			return base
		}
	}
	return DefaultLang
}

// WithLang stores the request language in ctx.
func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, ctxKey{}, lang)
}

// Middleware picks the request language from the lang query parameter,
// then the lang cookie, then Accept-Language.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang := ""
		if c, err := r.Cookie("lang"); err == nil {
			lang = c.Value
		}
		if q := r.URL.Query().Get("lang"); q != "" {
			lang = q
		}
		if _, ok := messages[lang]; !ok {
			lang = DetectLanguage(r.Header.Get("Accept-Language"))
		}
		next.ServeHTTP(w, r.WithContext(WithLang(r.Context(), lang)))
	})
}

// LangFromContext returns the stored language or DefaultLang.
func LangFromContext(ctx context.Context) string {
	if lang, ok := ctx.Value(ctxKey{}).(string); ok && lang != "" {
		return lang
	}
	return DefaultLang
}
