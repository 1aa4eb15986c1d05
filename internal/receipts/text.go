package receipts

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/shopkeeper/pkg/money"
)

const textRule = "────────────────────────────"

// FormatText renders the chat version of a receipt.
func FormatText(doc Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🧾 Chek №%d\n", doc.SaleID)
	fmt.Fprintf(&b, "📅 Sana: %s\n", doc.CreatedAt.Format("02.01.2006 15:04:05"))
	fmt.Fprintf(&b, "🏬 Do'kon: %s\n", doc.Store)
	fmt.Fprintf(&b, "👨‍💼 Sotuvchi: %s\n", doc.Seller)
	fmt.Fprintf(&b, "👤 Mijoz: %s\n", doc.Customer)
	b.WriteString(textRule + "\n")
	for _, line := range doc.Lines {
		fmt.Fprintf(&b, "%s — %d x %s = %s\n", line.Name, line.Qty, money.Format(line.Price), money.Format(line.Total))
	}
	b.WriteString(textRule + "\n")
	fmt.Fprintf(&b, "💰 Jami: %s\n", money.Format(doc.Total))
	fmt.Fprintf(&b, "💳 To'lov turi: %s\n", doc.Payment)
	b.WriteString(textRule + "\n")
	b.WriteString("Tashrifingiz uchun rahmat! ❤️")
	return b.String()
}
