// Package navigation tracks the conversational step of every chat and its visited path.
package navigation

import "errors"

// Step names a point in the conversation. It gates which routing rule may handle the next message.
type Step string

// StepNone is returned for chats that never interacted.
const StepNone Step = ""

const (
	StepStart             Step = "start"
	StepMakePurchase      Step = "make_purchase"
	StepDisplayProducts   Step = "display_products"
	StepProductSelection  Step = "product_selection"
	StepQuantitySelection Step = "quantity_selection"
	StepAddToCart         Step = "add_to_cart"
	StepViewCart          Step = "view_cart"
	StepCheckout          Step = "checkout"
	StepPhoneNumber       Step = "phone_number"
	StepAddress           Step = "address"
	StepName              Step = "name"
	StepConfirmOrder      Step = "confirm_order"

	StepAdmin              Step = "admin"
	StepAdminPassword      Step = "admin_password"
	StepAddItemName        Step = "add_item_name"
	StepAddItemDescription Step = "add_item_description"
	StepAddItemPrice       Step = "add_item_price"
	StepAddItemImage       Step = "add_item_image"
	StepUpdateItemSelect   Step = "update_item_select"
	StepRemoveItemName     Step = "remove_item_name"
	StepOrderSelection     Step = "order_selection"
)

// ErrUnknownStep is returned when advancing to a step outside the enumeration.
var ErrUnknownStep = errors.New("navigation: unknown step")

var knownSteps = map[Step]struct{}{
	StepStart:              {},
	StepMakePurchase:       {},
	StepDisplayProducts:    {},
	StepProductSelection:   {},
	StepQuantitySelection:  {},
	StepAddToCart:          {},
	StepViewCart:           {},
	StepCheckout:           {},
	StepPhoneNumber:        {},
	StepAddress:            {},
	StepName:               {},
	StepConfirmOrder:       {},
	StepAdmin:              {},
	StepAdminPassword:      {},
	StepAddItemName:        {},
	StepAddItemDescription: {},
	StepAddItemPrice:       {},
	StepAddItemImage:       {},
	StepUpdateItemSelect:   {},
	StepRemoveItemName:     {},
	StepOrderSelection:     {},
}

// Valid reports whether s is one of the enumerated steps. StepNone is not valid.
func (s Step) Valid() bool {
	_, ok := knownSteps[s]
	return ok
}

func (s Step) String() string { return string(s) }

// State is the navigation record of one chat.
type State struct {
	Current Step
	Path    []Step
}
