/*
	Project: LMS - self-paced courses with tests, checkpoints and projects.
*/
package lms

/*
TODO: payment provider webhook (Stripe | Paystack) -> user.Service.SetSubscription; `admin subscribe` until then
TODO: rate limit `/v1/users/login`, `/password-reset` & `/password-reset-confirm`
TODO: OpenAPI docs for the intent endpoints

FE:
	- Student Dashboard: catalog, course tree, lesson reader (markdown from the content host), timed tests
	- Admin Dashboard: stats, grading queue (submitted checkpoints & projects), catalog import

------------------------------------ Version X ----------------------------------------
- certificates on course completion (course_completed email only for now)
- re-sync enrolled progress when a published course changes (enrollment copies the tree once)
- leaderboard from module badges
*/
