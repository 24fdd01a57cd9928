package bot

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/storebot/core/logger"
	"github.com/m3rciful/storebot/internal/media"
	"github.com/m3rciful/storebot/internal/navigation"
	"github.com/m3rciful/storebot/internal/orders"
	"github.com/m3rciful/storebot/internal/shop"
	"github.com/m3rciful/storebot/internal/staging"
	"github.com/m3rciful/storebot/internal/storage"
)

func (e *Engine) admin(ctx context.Context, in *Input) error {
	if err := e.Navigator.Advance(ctx, in.ChatID, navigation.StepAdminPassword, true); err != nil {
		return err
	}
	return e.send(ctx, in.ChatID, textAdminWelcome, &Keyboard{Remove: true})
}

func (e *Engine) adminPassword(ctx context.Context, in *Input) error {
	if subtle.ConstantTimeCompare([]byte(in.Text), []byte(e.AdminPassword)) != 1 {
		logger.Warn(ctx, logger.CompBot, "admin.login", slog.String("status", "denied"))
		return e.send(ctx, in.ChatID, textWrongPassword, nil)
	}
	admin := true
	if _, err := e.Catalog.UpdateUser(ctx, in.ChatID, shop.UserPatch{IsAdmin: &admin}); err != nil {
		return err
	}
	logger.Info(ctx, logger.CompBot, "admin.login", slog.String("status", "ok"))
	if err := e.send(ctx, in.ChatID, textAccessGranted, nil); err != nil {
		return err
	}
	return e.showAdminMenu(ctx, in.ChatID, textAdminPrompt)
}

func (e *Engine) returnToAdminMenu(ctx context.Context, in *Input) error {
	if err := e.Staging.DropDraft(ctx, in.ChatID); err != nil {
		return err
	}
	return e.showAdminMenu(ctx, in.ChatID, textNext)
}

func (e *Engine) activateNotifications(ctx context.Context, in *Input) error {
	added, err := e.Catalog.AddSubscriber(ctx, in.ChatID)
	if err != nil {
		return err
	}
	logger.Info(ctx, logger.CompBot, "notify.subscribed", slog.Bool("collapsed", !added))
	return e.send(ctx, in.ChatID, textNotifyOn, nil)
}

func (e *Engine) deactivateNotifications(ctx context.Context, in *Input) error {
	removed, err := e.Catalog.RemoveSubscriber(ctx, in.ChatID)
	if err != nil {
		return err
	}
	logger.Info(ctx, logger.CompBot, "notify.unsubscribed", slog.Bool("collapsed", !removed))
	return e.send(ctx, in.ChatID, textNotifyOff, nil)
}

func (e *Engine) viewItems(ctx context.Context, in *Input) error {
	products, err := e.Catalog.ListProducts(ctx)
	if err != nil {
		return err
	}
	text := textNoItems
	if len(products) > 0 {
		text = catalogText(products)
	}
	if err := e.send(ctx, in.ChatID, text, nil); err != nil {
		return err
	}
	return e.showAdminMenu(ctx, in.ChatID, textNext)
}

// pickProduct lists the catalog for selection and moves to step.
func (e *Engine) pickProduct(ctx context.Context, in *Input, step navigation.Step, prompt string) error {
	products, err := e.Catalog.ListProducts(ctx)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		return e.showAdminMenu(ctx, in.ChatID, textNoItems)
	}
	if err := e.advance(ctx, in.ChatID, step); err != nil {
		return err
	}
	return e.send(ctx, in.ChatID, prompt, productsKeyboard(products, []string{btnReturnAdminMenu}))
}

func (e *Engine) removeItem(ctx context.Context, in *Input) error {
	return e.pickProduct(ctx, in, navigation.StepRemoveItemName, textSelectRemove)
}

func (e *Engine) updateItem(ctx context.Context, in *Input) error {
	return e.pickProduct(ctx, in, navigation.StepUpdateItemSelect, textSelectUpdate)
}

func (e *Engine) removeItemName(ctx context.Context, in *Input) error {
	p, err := e.Catalog.GetProductByName(ctx, in.Text)
	if errors.Is(err, storage.ErrNotFound) {
		return e.send(ctx, in.ChatID, textItemNotFound, nil)
	}
	if err != nil {
		return err
	}
	if err := e.Catalog.DeleteProduct(ctx, p.ID); err != nil {
		return err
	}
	if p.ImageKey != "" {
		if err := e.Media.Delete(ctx, p.ImageKey); err != nil {
			logger.Warn(ctx, logger.CompMedia, "media.delete_failed",
				slog.String("media_key", p.ImageKey),
				logger.Err(err),
			)
		}
	}
	logger.Info(ctx, logger.CompBot, "catalog.removed",
		slog.Int64("product_id", p.ID),
		slog.String("product", p.Name),
	)
	return e.showAdminMenu(ctx, in.ChatID, fmt.Sprintf(textItemRemoved, p.Name))
}

func (e *Engine) addItem(ctx context.Context, in *Input) error {
	if err := e.Staging.SaveDraft(ctx, in.ChatID, staging.ProductDraft{}); err != nil {
		return err
	}
	if err := e.advance(ctx, in.ChatID, navigation.StepAddItemName); err != nil {
		return err
	}
	return e.send(ctx, in.ChatID, textItemName, draftKeyboard(false))
}

func (e *Engine) updateItemSelect(ctx context.Context, in *Input) error {
	p, err := e.Catalog.GetProductByName(ctx, in.Text)
	if errors.Is(err, storage.ErrNotFound) {
		return e.send(ctx, in.ChatID, textItemNotFound, nil)
	}
	if err != nil {
		return err
	}
	d := staging.ProductDraft{
		ProductID:   p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		ImageKey:    p.ImageKey,
		ImageURL:    p.ImageURL,
	}
	if err := e.Staging.SaveDraft(ctx, in.ChatID, d); err != nil {
		return err
	}
	if err := e.advance(ctx, in.ChatID, navigation.StepAddItemName); err != nil {
		return err
	}
	return e.send(ctx, in.ChatID, fmt.Sprintf(textItemRename, p.Name), draftKeyboard(true))
}

// loadDraft returns the staged draft. A missing draft sends the admin back to the menu.
func (e *Engine) loadDraft(ctx context.Context, in *Input) (staging.ProductDraft, bool, error) {
	d, ok, err := e.Staging.LoadDraft(ctx, in.ChatID)
	if err != nil {
		return d, false, err
	}
	if !ok {
		if err := e.send(ctx, in.ChatID, textStale, nil); err != nil {
			return d, false, err
		}
		return d, false, e.showAdminMenu(ctx, in.ChatID, textNext)
	}
	return d, true, nil
}

// keep reports whether the admin chose to keep the current value of an updated product.
func keep(d staging.ProductDraft, text string) bool {
	return d.IsUpdate() && text == btnKeep
}

// stepDraft saves d, moves to step and sends the next prompt.
func (e *Engine) stepDraft(ctx context.Context, in *Input, d staging.ProductDraft, step navigation.Step, prompt string) error {
	if err := e.Staging.SaveDraft(ctx, in.ChatID, d); err != nil {
		return err
	}
	if err := e.advance(ctx, in.ChatID, step); err != nil {
		return err
	}
	return e.send(ctx, in.ChatID, fmt.Sprintf(prompt, d.Name), draftKeyboard(d.IsUpdate()))
}

func (e *Engine) itemName(ctx context.Context, in *Input) error {
	d, ok, err := e.loadDraft(ctx, in)
	if !ok {
		return err
	}
	if !keep(d, in.Text) {
		existing, err := e.Catalog.GetProductByName(ctx, in.Text)
		switch {
		case err == nil && existing.ID != d.ProductID:
			return e.send(ctx, in.ChatID, fmt.Sprintf(textItemExists, existing.Name), draftKeyboard(d.IsUpdate()))
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			return err
		}
		d.Name = in.Text
	}
	return e.stepDraft(ctx, in, d, navigation.StepAddItemDescription, textItemDesc)
}

func (e *Engine) itemDescription(ctx context.Context, in *Input) error {
	d, ok, err := e.loadDraft(ctx, in)
	if !ok {
		return err
	}
	if !keep(d, in.Text) {
		d.Description = in.Text
	}
	return e.stepDraft(ctx, in, d, navigation.StepAddItemPrice, textItemPrice)
}

func (e *Engine) itemPrice(ctx context.Context, in *Input) error {
	d, ok, err := e.loadDraft(ctx, in)
	if !ok {
		return err
	}
	if !keep(d, in.Text) {
		price, err := decimal.NewFromString(strings.TrimPrefix(in.Text, "GHC "))
		// prices are stored to the cent
		if err != nil || !price.IsPositive() || !price.Equal(price.Truncate(2)) {
			return e.send(ctx, in.ChatID, textItemBadPrice, draftKeyboard(d.IsUpdate()))
		}
		d.Price = price
	}
	return e.stepDraft(ctx, in, d, navigation.StepAddItemImage, textItemImage)
}

func (e *Engine) itemImage(ctx context.Context, in *Input) error {
	d, ok, err := e.loadDraft(ctx, in)
	if !ok {
		return err
	}
	data, err := e.Transport.FetchFile(ctx, in.PhotoFileID)
	if err != nil {
		return fmt.Errorf("fetch photo: %w", err)
	}
	key := media.KeyFor(d.Name)
	url, err := e.Media.Upload(ctx, key, data, "image/jpeg")
	if err != nil {
		return err
	}
	logger.Info(ctx, logger.CompMedia, "media.uploaded",
		slog.String("media_key", key),
		slog.Int("bytes", len(data)),
	)
	if d.ImageKey != "" && d.ImageKey != key {
		if err := e.Media.Delete(ctx, d.ImageKey); err != nil {
			logger.Warn(ctx, logger.CompMedia, "media.delete_failed", slog.String("media_key", d.ImageKey), logger.Err(err))
		}
	}
	d.ImageKey, d.ImageURL = key, url
	return e.saveDraft(ctx, in, d)
}

func (e *Engine) itemImageText(ctx context.Context, in *Input) error {
	d, ok, err := e.loadDraft(ctx, in)
	if !ok {
		return err
	}
	if keep(d, in.Text) {
		return e.saveDraft(ctx, in, d)
	}
	return e.send(ctx, in.ChatID, fmt.Sprintf(textItemImage, d.Name), draftKeyboard(d.IsUpdate()))
}

// saveDraft commits the draft to the catalog and returns to the admin menu.
func (e *Engine) saveDraft(ctx context.Context, in *Input, d staging.ProductDraft) error {
	p := shop.Product{
		ID:          d.ProductID,
		Name:        d.Name,
		Price:       d.Price,
		Description: d.Description,
		ImageKey:    d.ImageKey,
		ImageURL:    d.ImageURL,
	}
	text, op := textItemAdded, "create"
	var err error
	if d.IsUpdate() {
		p, err = e.Catalog.UpdateProduct(ctx, p)
		text, op = textItemUpdated, "update"
	} else {
		p, err = e.Catalog.CreateProduct(ctx, p)
	}
	if err != nil {
		return err
	}
	if err := e.Staging.DropDraft(ctx, in.ChatID); err != nil {
		logger.Warn(ctx, logger.CompStaging, "staging.drop_failed", logger.Err(err))
	}
	logger.Info(ctx, logger.CompBot, "catalog.saved",
		slog.Int64("product_id", p.ID),
		slog.String("product", p.Name),
		slog.String("op", op),
	)
	return e.showAdminMenu(ctx, in.ChatID, fmt.Sprintf(text, p.Name))
}

func (e *Engine) listOrders(state *shop.OrderState) HandlerFunc {
	return func(ctx context.Context, in *Input) error {
		list, err := e.Orders.List(ctx, state)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			text := "There are no orders"
			if state != nil {
				text = fmt.Sprintf("There are no %s orders", *state)
			}
			return e.showAdminMenu(ctx, in.ChatID, text)
		}
		if err := e.advance(ctx, in.ChatID, navigation.StepOrderSelection); err != nil {
			return err
		}
		kb := &Keyboard{Placeholder: placeholderOption}
		for _, o := range list {
			kb.Rows = append(kb.Rows, []string{o.ID})
		}
		kb.Rows = append(kb.Rows, []string{btnReturnAdminMenu})
		return e.send(ctx, in.ChatID, orderListText(list, state), kb)
	}
}

func (e *Engine) orderSelection(ctx context.Context, in *Input) error {
	o, err := e.Orders.Get(ctx, in.Text)
	if errors.Is(err, storage.ErrNotFound) {
		return e.send(ctx, in.ChatID, textOrderMissing, nil)
	}
	if err != nil {
		return err
	}
	text := orderDetailsText(o)
	targets := orders.Allowed(o.State)
	if len(targets) == 0 {
		text += "\n\n" + fmt.Sprintf(textOrderFinal, o.State)
		return e.send(ctx, in.ChatID, text, nil)
	}
	return e.send(ctx, in.ChatID, text, &Keyboard{Inline: orderActionRows(o, targets)})
}

// orderCallback applies an inline order action and tells the purchaser.
func (e *Engine) orderCallback(ctx context.Context, user shop.User, msg Message) error {
	cb := *msg.Callback
	action, err := ParseOrderAction(cb.Data)
	if err != nil {
		logger.Warn(ctx, logger.CompBot, "callback.rejected", slog.String("cause", "malformed"), logger.Err(err))
		e.answer(ctx, cb, textCbUnsupported)
		return nil
	}
	if !user.IsAdmin {
		logger.Warn(ctx, logger.CompBot, "callback.rejected",
			slog.String("status", "denied"),
			slog.String("order_id", action.OrderID),
		)
		e.answer(ctx, cb, textCbAdminsOnly)
		return nil
	}

	o, err := e.Orders.UpdateState(ctx, action.OrderID, action.State)
	var terr *orders.TransitionError
	switch {
	case errors.As(err, &terr):
		e.answer(ctx, cb, fmt.Sprintf(textCbInvalidState, terr.From, terr.To))
		return nil
	case errors.Is(err, storage.ErrNotFound):
		e.answer(ctx, cb, textCbMissing)
		return nil
	case errors.Is(err, storage.ErrConflict):
		e.answer(ctx, cb, textCbConflict)
		return nil
	case err != nil:
		return err
	}

	// navigation is untouched
	e.answer(ctx, cb, textCbUpdated)
	e.notifyPurchaser(ctx, o)
	return nil
}

func (e *Engine) answer(ctx context.Context, cb Callback, text string) {
	if err := e.Transport.AnswerCallback(ctx, cb, text); err != nil {
		logger.Debug(ctx, logger.CompBot, "callback.answer_failed", logger.Err(err))
	}
}
