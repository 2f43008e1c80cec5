package notifications

import "fmt"

// Fire-and-forget notification helpers consumed by the enrollment and
// payment flows. Callers invoke these in a goroutine.

func SendOrderConfirmed(toName, toEmail, orderTotal string) {
	SendEmail(toName, toEmail, "Your Order is Confirmed!",
		fmt.Sprintf("<h1>Order Confirmed</h1><p>Your payment of %s was received. Your enrollments are now active.</p>", orderTotal))
}

func SendEnrollmentConfirmed(toName, toEmail, childName, className string) {
	SendEmail(toName, toEmail, "Enrollment Confirmed!",
		fmt.Sprintf("<h1>Enrollment Confirmed</h1><p>%s now has a seat in %s. See you in class!</p>", childName, className))
}

func SendPaymentSucceeded(toName, toEmail, amount string) {
	SendEmail(toName, toEmail, "Payment Received",
		fmt.Sprintf("<h1>Payment Received</h1><p>We received your payment of %s. Thank you!</p>", amount))
}

func SendPaymentFailed(toName, toEmail string) {
	SendEmail(toName, toEmail, "Payment Failed",
		"<h1>Payment Failed</h1><p>We could not process your payment. Please update your payment method and try again.</p>")
}

func SendCancellationConfirmed(toName, toEmail, childName, className string) {
	SendEmail(toName, toEmail, "Enrollment Cancelled",
		fmt.Sprintf("<h1>Enrollment Cancelled</h1><p>%s's enrollment in %s has been cancelled. Any eligible refund will be processed shortly.</p>", childName, className))
}

func SendWaitlistSpotAvailable(toName, toEmail, childName, className string, hours int) {
	SendEmail(toName, toEmail, "A Spot Opened Up!",
		fmt.Sprintf("<h1>Spot Available</h1><p>A seat in %s is now available for %s. You have %d hours to claim it before it is offered to the next family in line.</p>", className, childName, hours))
}

func SendWaitlistSpotExpired(toName, toEmail, className string) {
	SendEmail(toName, toEmail, "Your Waitlist Spot Has Expired",
		fmt.Sprintf("<h1>Claim Window Expired</h1><p>The claim window for your spot in %s has passed. You can rejoin the waitlist at any time.</p>", className))
}

func SendInstallmentReminder(toName, toEmail, amount, dueDate string) {
	SendEmail(toName, toEmail, "Upcoming Installment Payment",
		fmt.Sprintf("<h1>Payment Reminder</h1><p>Your next installment of %s is due on %s. No action is needed if your card on file is up to date.</p>", amount, dueDate))
}
