package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/m3rciful/storebot/core/logger"
	"github.com/m3rciful/storebot/internal/navigation"
	"github.com/m3rciful/storebot/internal/shop"
	"github.com/m3rciful/storebot/internal/staging"
	"github.com/m3rciful/storebot/internal/storage"
)

func (e *Engine) start(ctx context.Context, in *Input) error {
	name := in.DisplayName
	if name == "" {
		name = in.User.DisplayName
	}
	return e.showMainMenu(ctx, in.ChatID, fmt.Sprintf(textWelcome, firstName(name)))
}

func (e *Engine) help(ctx context.Context, in *Input) error {
	return e.send(ctx, in.ChatID, textHelp, nil)
}

func (e *Engine) cancel(ctx context.Context, in *Input) error {
	if err := e.Staging.DropOrder(ctx, in.ChatID); err != nil {
		return err
	}
	if err := e.Staging.DropDraft(ctx, in.ChatID); err != nil {
		return err
	}
	if in.User.IsAdmin {
		return e.showAdminMenu(ctx, in.ChatID, textNext)
	}
	return e.showMainMenu(ctx, in.ChatID, textNext)
}

func (e *Engine) mainMenu(ctx context.Context, in *Input) error {
	if err := e.Staging.DropOrder(ctx, in.ChatID); err != nil {
		return err
	}
	return e.showMainMenu(ctx, in.ChatID, textNext)
}

func (e *Engine) makePurchase(ctx context.Context, in *Input) error {
	products, err := e.Catalog.ListProducts(ctx)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		return e.showMainMenu(ctx, in.ChatID, textNoProducts)
	}
	if err := e.advance(ctx, in.ChatID, navigation.StepMakePurchase); err != nil {
		return err
	}
	return e.showProducts(ctx, in.ChatID, products)
}

func (e *Engine) showProducts(ctx context.Context, chatID int64, products []shop.Product) error {
	if err := e.advance(ctx, chatID, navigation.StepDisplayProducts); err != nil {
		return err
	}
	return e.send(ctx, chatID, textProducts, customerProductsKeyboard(products))
}

func (e *Engine) selectProduct(ctx context.Context, in *Input) error {
	p, err := e.Catalog.GetProductByName(ctx, in.Text)
	if errors.Is(err, storage.ErrNotFound) {
		products, err := e.Catalog.ListProducts(ctx)
		if err != nil {
			return err
		}
		return e.send(ctx, in.ChatID, textProductNotFound, customerProductsKeyboard(products))
	}
	if err != nil {
		return err
	}

	stage := staging.OrderInProgress{ProductID: p.ID, ProductName: p.Name, UnitPrice: p.Price}
	if err := e.Staging.SaveOrder(ctx, in.ChatID, stage); err != nil {
		return err
	}
	if err := e.advance(ctx, in.ChatID, navigation.StepProductSelection); err != nil {
		return err
	}

	caption := fmt.Sprintf(textProductCaption, p.Name, p.Price.String())
	photo, ok := e.productPhoto(ctx, p)
	if !ok {
		return e.send(ctx, in.ChatID, caption, quantityKeyboard())
	}
	if err := e.Transport.SendPhoto(ctx, in.ChatID, photo, caption, quantityKeyboard()); err != nil {
		return fmt.Errorf("send photo: %w", err)
	}
	return nil
}

// productPhoto loads the product image from media, falling back to its public URL.
func (e *Engine) productPhoto(ctx context.Context, p shop.Product) (Photo, bool) {
	if p.ImageKey != "" {
		data, err := e.Media.Download(ctx, p.ImageKey)
		if err == nil && len(data) > 0 {
			return Photo{Data: data}, true
		}
		logger.Warn(ctx, logger.CompMedia, "media.download_failed",
			slog.Int64("product_id", p.ID),
			slog.String("media_key", p.ImageKey),
			logger.Err(err),
		)
	}
	if p.ImageURL != "" {
		return Photo{URL: p.ImageURL}, true
	}
	return Photo{}, false
}

func (e *Engine) backToProducts(ctx context.Context, in *Input) error {
	if err := e.Staging.DropOrder(ctx, in.ChatID); err != nil {
		return err
	}
	products, err := e.Catalog.ListProducts(ctx)
	if err != nil {
		return err
	}
	return e.showProducts(ctx, in.ChatID, products)
}

func (e *Engine) chooseQuantity(ctx context.Context, in *Input) error {
	n, err := strconv.Atoi(in.Text)
	if err != nil || n < 1 || n > maxQuantity {
		return e.send(ctx, in.ChatID, textQuantityRange, quantityKeyboard())
	}
	stage, ok, err := e.Staging.LoadOrder(ctx, in.ChatID)
	if err != nil {
		return err
	}
	if !ok {
		if err := e.send(ctx, in.ChatID, textStale, nil); err != nil {
			return err
		}
		return e.showMainMenu(ctx, in.ChatID, textNext)
	}

	stage.Quantity = n
	if err := e.Staging.SaveOrder(ctx, in.ChatID, stage); err != nil {
		return err
	}
	if err := e.advance(ctx, in.ChatID, navigation.StepQuantitySelection); err != nil {
		return err
	}
	text := fmt.Sprintf(textQuantityTotal, stage.ProductName, n, stage.Total().String())
	kb := &Keyboard{Rows: [][]string{{btnYes, btnNo}, {btnBack}}, Placeholder: placeholderOption}
	return e.send(ctx, in.ChatID, text, kb)
}

func (e *Engine) addToCart(ctx context.Context, in *Input) error {
	text := textNotAdded
	if in.Text == btnYes {
		stage, ok, err := e.Staging.LoadOrder(ctx, in.ChatID)
		if err != nil {
			return err
		}
		if !ok || stage.Quantity <= 0 {
			if err := e.send(ctx, in.ChatID, textStale, nil); err != nil {
				return err
			}
			return e.showMainMenu(ctx, in.ChatID, textNext)
		}
		product := shop.Product{ID: stage.ProductID, Name: stage.ProductName}
		if _, err := e.Carts.AddLineItem(ctx, in.ChatID, product, stage.Quantity, stage.UnitPrice); err != nil {
			return err
		}
		text = textAdded
	}

	if err := e.Staging.DropOrder(ctx, in.ChatID); err != nil {
		logger.Warn(ctx, logger.CompStaging, "staging.drop_failed", logger.Err(err))
	}
	if err := e.advance(ctx, in.ChatID, navigation.StepAddToCart); err != nil {
		return err
	}
	if err := e.send(ctx, in.ChatID, text, nil); err != nil {
		return err
	}
	return e.showMainMenu(ctx, in.ChatID, textNextCheckout)
}

func (e *Engine) viewCart(ctx context.Context, in *Input) error {
	c, err := e.Carts.Get(ctx, in.ChatID)
	if err != nil {
		return err
	}
	if err := e.advance(ctx, in.ChatID, navigation.StepViewCart); err != nil {
		return err
	}
	text := textCartEmpty
	if !c.IsEmpty() {
		text = cartText(c)
	}
	if err := e.send(ctx, in.ChatID, text, nil); err != nil {
		return err
	}
	return e.showMainMenu(ctx, in.ChatID, textNext)
}

func (e *Engine) checkout(ctx context.Context, in *Input) error {
	c, err := e.Carts.Get(ctx, in.ChatID)
	if err != nil {
		return err
	}
	if c.IsEmpty() {
		return e.showMainMenu(ctx, in.ChatID, textCartEmpty)
	}
	if err := e.advance(ctx, in.ChatID, navigation.StepCheckout); err != nil {
		return err
	}
	if err := e.advance(ctx, in.ChatID, navigation.StepPhoneNumber); err != nil {
		return err
	}
	return e.send(ctx, in.ChatID, textPhonePrompt, prefillKeyboard(in.User.Phone, "Enter Phone Number"))
}

func (e *Engine) phoneNumber(ctx context.Context, in *Input) error {
	if !ValidPhone(in.Text) {
		logger.Debug(ctx, logger.CompBot, "checkout.phone_rejected", slog.String("outcome", "invalid"))
		return e.send(ctx, in.ChatID, textPhoneInvalid, nil)
	}
	phone := in.Text
	user, err := e.Catalog.UpdateUser(ctx, in.ChatID, shop.UserPatch{Phone: &phone})
	if err != nil {
		return err
	}
	if err := e.advance(ctx, in.ChatID, navigation.StepAddress); err != nil {
		return err
	}
	return e.send(ctx, in.ChatID, textAddressPrompt, prefillKeyboard(user.Address, placeholderOption))
}

func (e *Engine) address(ctx context.Context, in *Input) error {
	address := in.Text
	user, err := e.Catalog.UpdateUser(ctx, in.ChatID, shop.UserPatch{Address: &address})
	if err != nil {
		return err
	}
	if err := e.advance(ctx, in.ChatID, navigation.StepName); err != nil {
		return err
	}
	return e.send(ctx, in.ChatID, textNamePrompt, prefillKeyboard(user.DisplayName, placeholderOption))
}

func (e *Engine) name(ctx context.Context, in *Input) error {
	name := in.Text
	user, err := e.Catalog.UpdateUser(ctx, in.ChatID, shop.UserPatch{DisplayName: &name})
	if err != nil {
		return err
	}
	c, err := e.Carts.Get(ctx, in.ChatID)
	if err != nil {
		return err
	}
	if c.IsEmpty() {
		return e.showMainMenu(ctx, in.ChatID, textCartEmpty)
	}
	if err := e.advance(ctx, in.ChatID, navigation.StepConfirmOrder); err != nil {
		return err
	}

	if err := e.send(ctx, in.ChatID, textOrderOf, nil); err != nil {
		return err
	}
	if err := e.send(ctx, in.ChatID, cartText(c), nil); err != nil {
		return err
	}
	if err := e.send(ctx, in.ChatID, fmt.Sprintf(textDeliverTo, user.DisplayName, user.Address, user.Phone), nil); err != nil {
		return err
	}
	kb := &Keyboard{Rows: [][]string{{btnCancelOrder}, {btnProceed}}, Placeholder: "Select Payment Method"}
	return e.send(ctx, in.ChatID, textCashOnly, kb)
}

// confirmOrder places the order from a fresh read of the cart. The order and the
// removal of exactly its items commit together, so a failure leaves the cart as it was.
func (e *Engine) confirmOrder(ctx context.Context, in *Input) error {
	c, err := e.Carts.Get(ctx, in.ChatID)
	if err != nil {
		return err
	}
	if c.IsEmpty() {
		return e.showMainMenu(ctx, in.ChatID, textCartEmpty)
	}

	purchaser := shop.Purchaser{Name: in.User.DisplayName, Phone: in.User.Phone, Address: in.User.Address}
	order, err := e.Orders.Place(ctx, in.ChatID, purchaser, c)
	if err != nil {
		return err
	}

	if err := e.send(ctx, in.ChatID, textOrderPlaced, nil); err != nil {
		logger.Warn(ctx, logger.CompBot, "checkout.ack_failed", slog.String("order_id", order.ID), logger.Err(err))
	}
	e.notifyAdmins(ctx, order)
	return e.showMainMenu(ctx, in.ChatID, textNext)
}

func (e *Engine) abandonOrder(ctx context.Context, in *Input) error {
	return e.showMainMenu(ctx, in.ChatID, textOrderAbandoned)
}
