package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/storebot/internal/shop"
)

// Reply keyboard buttons.
const (
	btnMakePurchase     = "Make A Purchase"
	btnViewCart         = "View Cart"
	btnCheckout         = "Checkout"
	btnProceedCheckout  = "Proceed To Checkout"
	btnMainMenu         = "Main Menu"
	btnBack             = "Back"
	btnYes              = "Yes"
	btnNo               = "No"
	btnProceed          = "Proceed"
	btnCancelOrder      = "Cancel Order"
	btnKeep             = "Keep"
	btnAddItem          = "Add Item"
	btnRemoveItem       = "Remove Item"
	btnUpdateItem       = "Update Item"
	btnViewItems        = "View All Items"
	btnAllOrders        = "All Orders"
	btnReturnAdminMenu  = "Return to Admin Menu"
	placeholderOption   = "Select An Option"
	placeholderProduct  = "Select A Product"
	placeholderQuantity = "Enter Quantity"
)

const (
	maxQuantity = 10

	textWelcome       = "Hello %s, welcome to our store.\n\nWhat would you like to do?"
	textNext          = "What would you like to do next?"
	textNextCheckout  = "What would you like to do next?\nSelect checkout to proceed with payment"
	textNotUnderstood = "Sorry, I didn't understand that command.\n\nPlease select an option from the menu below."
	textHelp          = "Howdy, how are you doing?\n\nSend /start to open the store menu or /cancel to leave the current step."
	textFailure       = "Something went wrong on our side, please try again"
	textStale         = "An error occurred, please try again"

	textProducts        = "Hello, what would you like to purchase?\nSelect a product from the list below"
	textNoProducts      = "There are no products available at the moment"
	textProductNotFound = "Product not found, please select a product from the list below"
	textProductCaption  = "Product: %s\nPrice: %s\n\nHow many would you like to purchase?"
	textQuantityRange   = "Please select a quantity between 1 and 10"
	textQuantityTotal   = "%s\nQuantity: %d\nTotal Cost: %s\n\nWould you like to add this to your cart?"
	textAdded           = "Product added to cart"
	textNotAdded        = "Product not added to cart"
	textCartEmpty       = "Your cart is empty"

	textPhonePrompt   = "Please enter your phone number to proceed with payment\n\nFormat: 0201234567"
	textPhoneInvalid  = "Please enter a valid phone number\n\nFormat: 0201234567"
	textAddressPrompt = "Please enter your address\n\nFormat: 1234 Street Name, City, Region\n\nExample: 1234 Street Name, Accra, Greater Accra"
	textNamePrompt    = "Please enter your name\n\nFormat: First Name Last Name\n\nExample: John Doe"
	textOrderOf       = "Your order of"
	textDeliverTo     = "will be delivered to\n\n%s\n\n%s\n\n%s\n\nPlease confirm your order"
	textCashOnly      = "Due to current limitations, we only accept cash payments. " +
		"Once you confirm your order, you will be contacted by our delivery agent to arrange payment and delivery."
	textOrderPlaced    = "Your order is being processed. You will be contacted by our delivery agent shortly."
	textOrderAbandoned = "Your order has been cancelled\n\nWhat would you like to do next?"
	textOrderState     = "Your order %s has been marked as %s"

	textAdminWelcome   = "Welcome Admin, enter the password to continue"
	textWrongPassword  = "Incorrect password, please try again"
	textAccessGranted  = "Access granted"
	textAdminPrompt    = "What would you like to do?"
	textNotifyOn       = "You would receive order notifications on this chat"
	textNotifyOff      = "You would not receive order notifications on this chat"
	textNoItems        = "There are no items in the store"
	textItemNotFound   = "Item not found, please select an item from the list"
	textItemName       = "Please enter the item name"
	textItemRename     = "Enter the new name of %s"
	textItemExists     = "%s already exists, please enter a different name"
	textItemDesc       = "Enter the description of %s"
	textItemPrice      = "Enter the price of %s"
	textItemBadPrice   = "Please enter a valid price greater than zero, for example 25.50"
	textItemImage      = "Send an image of %s"
	textItemAdded      = "%s has been added to the list of products"
	textItemUpdated    = "%s has been updated"
	textItemRemoved    = "%s has been removed from the list of products"
	textSelectRemove   = "Please select item you want to remove"
	textSelectUpdate   = "Please select the item you want to update"
	textOrderMissing   = "Order does not exist, please try again"
	textOrderFinal     = "This order is %s and can no longer change state"
	textCbUpdated      = "Order state has been updated"
	textCbUnsupported  = "Unsupported action"
	textCbAdminsOnly   = "Only admins can update orders"
	textCbMissing      = "Order does not exist"
	textCbConflict     = "The order was changed meanwhile, please open it again"
	textCbInvalidState = "Order cannot move from %s to %s"
)

func mainMenuKeyboard() *Keyboard {
	return &Keyboard{
		Rows:        [][]string{{btnMakePurchase}, {btnViewCart, btnCheckout}},
		Placeholder: placeholderOption,
	}
}

func adminMenuKeyboard() *Keyboard {
	return &Keyboard{
		Rows: [][]string{
			{btnAddItem, btnRemoveItem},
			{btnUpdateItem, btnViewItems},
			{orderListButton(shop.OrderPending), orderListButton(shop.OrderConfirmed)},
			{orderListButton(shop.OrderCancelled), orderListButton(shop.OrderCompleted)},
			{btnAllOrders},
		},
		Placeholder: placeholderOption,
	}
}

func productsKeyboard(products []shop.Product, tail ...[]string) *Keyboard {
	kb := &Keyboard{Placeholder: placeholderProduct}
	kb.Rows = pairRows(productNames(products))
	kb.Rows = append(kb.Rows, tail...)
	return kb
}

func customerProductsKeyboard(products []shop.Product) *Keyboard {
	return productsKeyboard(products, []string{btnCheckout, btnViewCart}, []string{btnMainMenu})
}

func quantityKeyboard() *Keyboard {
	var buttons []string
	for i := 1; i <= maxQuantity; i++ {
		buttons = append(buttons, strconv.Itoa(i))
	}
	buttons = append(buttons, btnBack)
	kb := &Keyboard{Placeholder: placeholderQuantity}
	for len(buttons) > 0 {
		n := min(3, len(buttons))
		kb.Rows = append(kb.Rows, buttons[:n])
		buttons = buttons[n:]
	}
	return kb
}

// prefillKeyboard offers the stored value as a one tap answer.
func prefillKeyboard(value, placeholder string) *Keyboard {
	kb := &Keyboard{Placeholder: placeholder}
	if v := strings.TrimSpace(value); v != "" {
		kb.Rows = append(kb.Rows, []string{v})
	}
	kb.Rows = append(kb.Rows, []string{btnMainMenu})
	return kb
}

func draftKeyboard(update bool) *Keyboard {
	kb := &Keyboard{}
	if update {
		kb.Rows = append(kb.Rows, []string{btnKeep})
	}
	kb.Rows = append(kb.Rows, []string{btnReturnAdminMenu})
	return kb
}

func pairRows(values []string) [][]string {
	var rows [][]string
	for i := 0; i < len(values); i += 2 {
		end := min(i+2, len(values))
		rows = append(rows, append([]string(nil), values[i:end]...))
	}
	return rows
}

func productNames(products []shop.Product) []string {
	names := make([]string, 0, len(products))
	for _, p := range products {
		names = append(names, p.Name)
	}
	return names
}

func orderListButton(state shop.OrderState) string {
	return state.Title() + " Orders"
}

// actionLabel is the inline button text moving an order to state.
func actionLabel(state shop.OrderState) string {
	switch state {
	case shop.OrderCompleted:
		return "Complete Order"
	case shop.OrderCancelled:
		return "Cancel Order"
	case shop.OrderConfirmed:
		return "Confirm Order"
	default:
		return "Pending Order"
	}
}

func cartText(c shop.Cart) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total Cost: %s\n\n", c.Total().String())
	for _, it := range c.Items {
		fmt.Fprintf(&b, "Product: %s\nQuantity: %d\n\n", it.ProductName, it.Quantity)
	}
	return strings.TrimRight(b.String(), "\n")
}

func catalogText(products []shop.Product) string {
	var b strings.Builder
	b.WriteString("Here are the list of items in the store\n\n")
	for _, p := range products {
		fmt.Fprintf(&b, "Name: %s\nDescription: %s\nPrice: %s\n\n", p.Name, p.Description, p.Price.String())
	}
	return strings.TrimRight(b.String(), "\n")
}

func orderListText(list []shop.Order, state *shop.OrderState) string {
	var b strings.Builder
	if state == nil {
		b.WriteString("Here are the list of orders\n\nSelect an order to view details\n\n")
	} else {
		fmt.Fprintf(&b, "Here are the list of %s orders\n\nSelect an order to view details\n\n", *state)
	}
	for _, o := range list {
		fmt.Fprintf(&b, "Order ID: %s\nUser ID: %d\n", o.ID, o.UserID)
		if state == nil {
			fmt.Fprintf(&b, "Order State: %s\n", o.State)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func orderDetailsText(o shop.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order ID: %s\nUser ID: %d\nOrder State: %s\n\n", o.ID, o.UserID, o.State)
	fmt.Fprintf(&b, "Name: %s\nPhone: %s\nAddress: %s\n\nOrder Items:\n\n", o.Purchaser.Name, o.Purchaser.Phone, o.Purchaser.Address)
	for _, it := range o.Items {
		fmt.Fprintf(&b, "Item: %s\nQuantity: %d\nPrice: %s\n\n", it.ProductName, it.Quantity, it.UnitPrice.String())
	}
	fmt.Fprintf(&b, "Total: GHC %s", o.Total.String())
	return b.String()
}

func newOrderText(o shop.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New order from %s\n\nAddress: %s\n\nPhone: %s\n\nOrder ID: %s\n\nOrder Details:\n\n",
		o.Purchaser.Name, o.Purchaser.Address, o.Purchaser.Phone, o.ID)
	for _, it := range o.Items {
		fmt.Fprintf(&b, "%s - %d - GHC %s\n", it.ProductName, it.Quantity, it.UnitPrice.String())
	}
	fmt.Fprintf(&b, "\nTotal: GHC %s", o.Total.String())
	return b.String()
}

func firstName(displayName string) string {
	if f := strings.Fields(displayName); len(f) > 0 {
		return f[0]
	}
	return "there"
}

// ValidPhone accepts exactly ten decimal digits.
func ValidPhone(s string) bool {
	if len(s) != 10 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
