package bot

import (
	"github.com/m3rciful/storebot/internal/navigation"
	"github.com/m3rciful/storebot/internal/shop"
)

// customerSteps are the steps where the customer menu buttons are honoured.
var customerSteps = []navigation.Step{
	navigation.StepNone,
	navigation.StepStart,
	navigation.StepMakePurchase,
	navigation.StepDisplayProducts,
	navigation.StepProductSelection,
	navigation.StepQuantitySelection,
	navigation.StepAddToCart,
	navigation.StepViewCart,
	navigation.StepCheckout,
	navigation.StepPhoneNumber,
	navigation.StepAddress,
	navigation.StepName,
	navigation.StepConfirmOrder,
}

func steps(s ...navigation.Step) []navigation.Step { return s }

// rules is the routing table. Order matters: commands first, then admin rules,
// then the customer menu buttons, then free text handlers of each step.
func (e *Engine) rules() []Rule {
	rules := []Rule{
		{Name: "start", Match: Command("/start"), Handle: e.start},
		{Name: "help", Match: Command("/help"), Handle: e.help},
		{Name: "cancel", Match: Command("/cancel"), Handle: e.cancel},
		{Name: "admin", Match: Command("/admin"), Handle: e.admin},
		{Name: "activate_notifications", Steps: steps(navigation.StepAdmin),
			Match: AdminOnly(Command("/activate_notifications")), Handle: e.activateNotifications},
		{Name: "deactivate_notifications", Steps: steps(navigation.StepAdmin),
			Match: AdminOnly(Command("/deactivate_notifications")), Handle: e.deactivateNotifications},

		{Name: "admin_password", Steps: steps(navigation.StepAdminPassword), Match: AnyText(), Handle: e.adminPassword},
		{Name: "return_admin_menu", Match: AdminOnly(TextIs(btnReturnAdminMenu)), Handle: e.returnToAdminMenu},
		{Name: "add_item", Steps: steps(navigation.StepAdmin), Match: AdminOnly(TextIs(btnAddItem)), Handle: e.addItem},
		{Name: "update_item", Steps: steps(navigation.StepAdmin), Match: AdminOnly(TextIs(btnUpdateItem)), Handle: e.updateItem},
		{Name: "remove_item", Steps: steps(navigation.StepAdmin), Match: AdminOnly(TextIs(btnRemoveItem)), Handle: e.removeItem},
		{Name: "view_items", Steps: steps(navigation.StepAdmin), Match: AdminOnly(TextIs(btnViewItems)), Handle: e.viewItems},
	}
	for _, state := range shop.OrderStates {
		rules = append(rules, Rule{
			Name:   string(state) + "_orders",
			Steps:  steps(navigation.StepAdmin),
			Match:  AdminOnly(TextIs(orderListButton(state))),
			Handle: e.listOrders(&state),
		})
	}
	rules = append(rules,
		Rule{Name: "all_orders", Steps: steps(navigation.StepAdmin), Match: AdminOnly(TextIs(btnAllOrders)), Handle: e.listOrders(nil)},
		Rule{Name: "item_name", Steps: steps(navigation.StepAddItemName), Match: AdminOnly(AnyText()), Handle: e.itemName},
		Rule{Name: "item_description", Steps: steps(navigation.StepAddItemDescription), Match: AdminOnly(AnyText()), Handle: e.itemDescription},
		Rule{Name: "item_price", Steps: steps(navigation.StepAddItemPrice), Match: AdminOnly(AnyText()), Handle: e.itemPrice},
		Rule{Name: "item_image", Steps: steps(navigation.StepAddItemImage), Match: AdminOnly(HasPhoto()), Handle: e.itemImage},
		Rule{Name: "item_image_text", Steps: steps(navigation.StepAddItemImage), Match: AdminOnly(AnyText()), Handle: e.itemImageText},
		Rule{Name: "update_item_select", Steps: steps(navigation.StepUpdateItemSelect), Match: AdminOnly(AnyText()), Handle: e.updateItemSelect},
		Rule{Name: "remove_item_name", Steps: steps(navigation.StepRemoveItemName), Match: AdminOnly(AnyText()), Handle: e.removeItemName},
		Rule{Name: "order_selection", Steps: steps(navigation.StepOrderSelection), Match: AdminOnly(AnyText()), Handle: e.orderSelection},

		Rule{Name: "main_menu", Steps: customerSteps, Match: TextIs(btnMainMenu), Handle: e.mainMenu},
		Rule{Name: "make_purchase", Steps: customerSteps, Match: TextIs(btnMakePurchase), Handle: e.makePurchase},
		Rule{Name: "checkout", Steps: customerSteps, Match: TextIs(btnCheckout, btnProceedCheckout), Handle: e.checkout},
		Rule{Name: "view_cart", Steps: customerSteps, Match: TextIs(btnViewCart), Handle: e.viewCart},

		Rule{Name: "select_product", Steps: steps(navigation.StepDisplayProducts), Match: AnyText(), Handle: e.selectProduct},
		Rule{Name: "back_to_products", Steps: steps(navigation.StepProductSelection, navigation.StepQuantitySelection),
			Match: TextIs(btnBack), Handle: e.backToProducts},
		Rule{Name: "choose_quantity", Steps: steps(navigation.StepProductSelection), Match: AnyText(), Handle: e.chooseQuantity},
		Rule{Name: "add_to_cart", Steps: steps(navigation.StepQuantitySelection), Match: TextIs(btnYes, btnNo), Handle: e.addToCart},
		Rule{Name: "phone_number", Steps: steps(navigation.StepPhoneNumber), Match: AnyText(), Handle: e.phoneNumber},
		Rule{Name: "address", Steps: steps(navigation.StepAddress), Match: AnyText(), Handle: e.address},
		Rule{Name: "name", Steps: steps(navigation.StepName), Match: AnyText(), Handle: e.name},
		Rule{Name: "confirm_order", Steps: steps(navigation.StepConfirmOrder), Match: TextIs(btnProceed), Handle: e.confirmOrder},
		Rule{Name: "abandon_order", Steps: steps(navigation.StepConfirmOrder), Match: TextIs(btnCancelOrder), Handle: e.abandonOrder},
	)
	return rules
}
