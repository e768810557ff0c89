package telegram

// User-facing replies.
const (
	greetFmt = "Hello, %s!"

	meMissingArgs = "Missing arguments for /me command"

	remindUsage       = "Tell me when, e.g. /remindme 2h or /remindme \"tomorrow at 9am\""
	remindNeedsReply  = "Standalone reminders are not supported yet, issue the command in a reply to another message"
	remindBadDate     = "Failed to parse date format"
	remindNotInFuture = "That time is already in the past"
	remindCreatedFmt  = "Reminder created for %s"

	tzMissingArgs = "At least one argument is required for this command"
	tzInvalid     = "Unable to parse specified timezone, please check: https://en.wikipedia.org/wiki/List_of_tz_database_time_zones#List"
	tzUpdatedFmt  = "Timezone updated to %s"

	quoteNeedsReply  = "Reply to the message you want to quote"
	quoteUnknownUser = "I can't tell who wrote that message"
	quoteDuplicate   = "That message is already quoted"
	quoteSaved       = "Quote saved"

	unquoteNeedsReply = "Reply to the quoted message you want to remove"
	unquoteNotFound   = "That message is not quoted"
	unquoteNotOwner   = "Only the quoted user can remove this quote"
	unquoteDone       = "Quote removed"

	quotesCountFmt = "You have %d quote(s) in this chat"

	allEmpty = "Nobody to mention yet"
)
