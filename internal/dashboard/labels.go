package dashboard

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Text keys rendered by the panels.
const (
	KeyHomeTitle         = "home.title"
	KeyServiceRecovery   = "service.recovery"
	KeyVaultUnsubscribed = "vault.unsubscribed"
	KeyVaultValidate     = "vault.validate"
	KeyVaultValidated    = "vault.validated"
	KeyMultisigTitle     = "multisig.title"
	KeyMultisigOwners    = "multisig.owners"
	KeyApproveTitle      = "approve.title"
	KeyApproveDone       = "approve.done"
	KeySubscriptionTitle = "subscription.title"
)

var texts = buildTexts()

func buildTexts() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.French))

	fr := language.French
	b.SetString(fr, KeyHomeTitle, "Récapitulatif")
	b.SetString(fr, KeyServiceRecovery, "Récupération des avoirs en cas de pertes des accès")
	b.SetString(fr, KeyVaultUnsubscribed, "Vous n'êtes souscrit à aucun service.")
	b.SetString(fr, KeyVaultValidate, "Déclenchement de la procédure de protection de vos avoirs.")
	b.SetString(fr, KeyVaultValidated, "La procédure de protection de vos avoirs est validée.")
	b.SetString(fr, KeyMultisigTitle, "Gérer votre vault multisig personnel")
	b.SetString(fr, KeyMultisigOwners, "2/3 vos adresses de récupération et 1/3 l'adresse du contrat DMSD")
	b.SetString(fr, KeyApproveTitle, "Approuver le transfert de vos avoirs vers votre vault")
	b.SetString(fr, KeyApproveDone, "Transfert approuvé.")
	b.SetString(fr, KeySubscriptionTitle, "Souscrire au service de récupération")

	en := language.English
	b.SetString(en, KeyHomeTitle, "Summary")
	b.SetString(en, KeyServiceRecovery, "Asset recovery when wallet access is lost")
	b.SetString(en, KeyVaultUnsubscribed, "You are not subscribed to any service.")
	b.SetString(en, KeyVaultValidate, "Start the protection procedure for your assets.")
	b.SetString(en, KeyVaultValidated, "The protection procedure for your assets is validated.")
	b.SetString(en, KeyMultisigTitle, "Manage your personal multisig vault")
	b.SetString(en, KeyMultisigOwners, "2/3 your recovery addresses and 1/3 the DMSD contract address")
	b.SetString(en, KeyApproveTitle, "Approve the transfer of your assets to your vault")
	b.SetString(en, KeyApproveDone, "Transfer approved.")
	b.SetString(en, KeySubscriptionTitle, "Subscribe to the recovery service")

	return b
}

// Text renders a panel text in tag, falling back to French.
func Text(key string, tag language.Tag) string {
	return message.NewPrinter(tag, message.Catalog(texts)).Sprintf(key)
}
