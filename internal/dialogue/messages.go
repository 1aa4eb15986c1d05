package dialogue

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/shopkeeper/internal/cart"
	"github.com/angelmondragon/shopkeeper/internal/catalog"
	"github.com/angelmondragon/shopkeeper/internal/ledger"
	"github.com/angelmondragon/shopkeeper/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopkeeper/pkg/errors"
	"github.com/angelmondragon/shopkeeper/pkg/money"
)

// Button labels. The transport shows them as reply keyboards and sends the
// pressed label back as plain text.
const (
	BtnIntake  = "🔹 Yangi mahsulot qo'shish"
	BtnSell    = "🛒 Mahsulot sotish"
	BtnStats   = "📊 Statistika"
	BtnDebtors = "📋 Qarzdorlar ro'yxati"

	BtnReceiptByID = "📋 Chek ID bo‘yicha"
	BtnDaily       = "📅 Kunlik"
	BtnMonthly     = "🗓 Oylik"
	BtnYearly      = "📆 Yillik"
	BtnBack        = "⬅️ Orqaga"

	BtnViewCart   = "🛒 Savat"
	BtnAddMore    = "➕ Yana mahsulot qo'shish"
	BtnCheckout   = "✅ Rasmiylashtirish"
	BtnRemoveLast = "↩️ Oxirgisini o'chirish"
	BtnClearCart  = "🗑 Savatni tozalash"

	BtnNewCustomer = "➕ Yangi mijoz"
	BtnCash        = "Naqd"
	BtnCredit      = "Qarz"

	BtnRetry      = "🔁 Qayta urinish"
	BtnBackToCart = "🛒 Savatga qaytish"

	BtnCancel = "Bekor qilish"
)

const (
	msgWelcome        = "Assalomu alaykum! Kerakli bo'limni tanlang:"
	msgChoose         = "Quyidagilardan birini tanlang:"
	msgCancelled      = "❌ Bekor qilindi."
	msgAskProduct     = "Mahsulot nomini yoki ID raqamini kiriting:"
	msgNoProducts     = "🔍 Mahsulot topilmadi. Boshqa nom kiriting:"
	msgPickProduct    = "Bir nechta mahsulot topildi, tanlang:"
	msgOutOfStock     = "❗ Bu mahsulot omborda qolmagan."
	msgBadQty         = "❗ Miqdor musbat butun son bo'lishi kerak."
	msgBadPrice       = "❗ Narx noto'g'ri. Masalan: 5000 yoki 5 000"
	msgEmptyCart      = "🛒 Savat bo'sh."
	msgAskCustomer    = "Mijozni tanlang yoki yangisini qo'shing:"
	msgAskCustName    = "Mijoz ismini kiriting:"
	msgAskCustPhone   = "Mijoz telefon raqamini kiriting (+998901234567):"
	msgBadCustName    = "❗ Ism bo'sh bo'lmasligi kerak."
	msgAskPayment     = "To'lov turini tanlang:"
	msgBadPayment     = "❗ To'lov turi Naqd yoki Qarz bo'lishi kerak."
	msgCommitFailed   = "❌ Sotuvni saqlab bo'lmadi. Qayta urinib ko'ring."
	msgAskIntakeName  = "Yangi mahsulot nomini kiriting:"
	msgAskIntakeQty   = "Miqdorini kiriting (dona):"
	msgAskIntakeCost  = "Tannarxini dollarda kiriting (masalan 2.5):"
	msgBadIntakeCost  = "❗ Tannarx noto'g'ri. Masalan: 2.5"
	msgAskIntakePrice = "Tavsiya etilgan sotuv narxini kiriting (so'm):"
	msgAskPeriod      = "Hisobot turini tanlang:"
	msgAskReceiptID   = "Chek ID raqamini kiriting:"
	msgBadReceiptID   = "❗ Chek ID musbat son bo'lishi kerak."
	msgNoDebtors      = "✅ Qarzdorlar yo'q."
	msgUnexpected     = "⚠️ Kutilmagan xatolik. Keyinroq urinib ko'ring."
)

func menuOptions() [][]string {
	return [][]string{
		{BtnIntake},
		{BtnSell},
		{BtnStats, BtnDebtors},
	}
}

func statsOptions() [][]string {
	return [][]string{
		{BtnReceiptByID},
		{BtnDaily, BtnMonthly, BtnYearly},
		{BtnBack},
	}
}

func cartOptions() [][]string {
	return [][]string{
		{BtnAddMore},
		{BtnCheckout},
		{BtnRemoveLast, BtnClearCart},
		{BtnCancel},
	}
}

func paymentOptions() [][]string {
	return [][]string{{BtnCash, BtnCredit}, {BtnCancel}}
}

func commitFailedOptions() [][]string {
	return [][]string{{BtnRetry}, {BtnBackToCart}, {BtnCancel}}
}

func cancelOnly() [][]string {
	return [][]string{{BtnCancel}}
}

func productOption(p models.Product) string {
	return fmt.Sprintf("#%d %s (%d dona)", p.ID, p.Name, p.Qty)
}

func customerOption(c models.Customer) string {
	return fmt.Sprintf("#%d %s %s", c.ID, c.Name, c.Phone)
}

// cartText lists the cart lines with the running total.
func cartText(c *cart.Cart) string {
	view := c.View()
	if len(view.Lines) == 0 {
		return msgEmptyCart
	}
	var b strings.Builder
	b.WriteString("🛒 Savat:")
	for _, line := range view.Lines {
		fmt.Fprintf(&b, "\n%d. %s — %d x %s = %s",
			line.Position, line.Item.Name, line.Item.Qty,
			money.Format(line.Item.UnitPrice), money.Format(line.Total))
	}
	fmt.Fprintf(&b, "\n💰 Jami: %s", money.Format(view.Total))
	return b.String()
}

func debtorsText(rows []ledger.DebtorRow, loc *time.Location) string {
	if len(rows) == 0 {
		return msgNoDebtors
	}
	var b strings.Builder
	b.WriteString("📋 Qarzdorlar:")
	var total int64
	for i, row := range rows {
		fmt.Fprintf(&b, "\n%d. %s %s — %s (Chek №%d, %s)",
			i+1, row.CustomerName, row.CustomerPhone, money.Format(row.Amount),
			row.SaleID, row.CreatedAt.In(loc).Format("02.01.2006"))
		total += row.Amount
	}
	fmt.Fprintf(&b, "\n💰 Jami qarz: %s", money.Format(total))
	return b.String()
}

// errorText turns a domain error into the line shown to the user.
func errorText(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return msgUnexpected
	}
	switch typed.Code() {
	case pkgerrors.CodeInsufficientStock, pkgerrors.CodeValidation:
		if shortage, ok := typed.Details().(catalog.StockShortage); ok {
			return fmt.Sprintf("❗ Omborda yetarli emas: %s — so'ralgan %d, mavjud %d dona.",
				shortage.Name, shortage.Requested, shortage.Available)
		}
		if typed.Code() == pkgerrors.CodeInsufficientStock {
			return "❗ Omborda yetarli mahsulot yo'q."
		}
		return "❗ Noto'g'ri ma'lumot: " + typed.Message()
	case pkgerrors.CodeNotFound:
		return "🔍 Topilmadi."
	case pkgerrors.CodeEmptyCart:
		return msgEmptyCart
	case pkgerrors.CodeStateConflict:
		return "⚠️ Bu amal hozir mumkin emas."
	case pkgerrors.CodePersistence:
		return msgCommitFailed
	case pkgerrors.CodeDependency:
		return "⚠️ Tashqi xizmat javob bermadi. Keyinroq urinib ko'ring."
	default:
		return msgUnexpected
	}
}
