package browser

// In-page functions shared by the backends. Each is a function expression;
// backends invoke it with no arguments and await the returned value.

// ScriptSettleMedia resolves once every image currently in the document has
// fired load or error and every video has reached HAVE_CURRENT_DATA or errored.
const ScriptSettleMedia = `() => {
	return new Promise((resolve, reject) => {
		const pending = [];
		document.querySelectorAll('img').forEach(img => {
			if (!img.complete) {
				pending.push(new Promise(done => {
					img.addEventListener('load', done, { once: true });
					img.addEventListener('error', done, { once: true });
				}));
			}
		});
		document.querySelectorAll('video').forEach(video => {
			if (video.readyState < 2) {
				pending.push(new Promise(done => {
					video.addEventListener('loadeddata', done, { once: true });
					video.addEventListener('error', done, { once: true });
				}));
			}
		});
		Promise.all(pending).then(() => resolve(true)).catch(reject);
	});
}`

// ScriptScrollViewport scrolls the window down by one viewport height.
const ScriptScrollViewport = `() => { window.scrollBy(0, window.innerHeight); return true; }`

// ScriptQueryElements returns one ElementRecord per meaningful element among
// article, div, span, a, button and img, in document order. Text is cut in
// the page to keep the payload small; callers still normalize it.
const ScriptQueryElements = `() => {
	const meaningful = el => el.textContent.trim().length > 0 ||
		el.querySelector('img') !== null ||
		el.getAttribute('role') === 'button' ||
		el.getAttribute('aria-label') !== null;

	return Array.from(document.querySelectorAll('article,div,span,a,button,img'))
		.filter(meaningful)
		.map(el => ({
			tag: el.tagName.toLowerCase(),
			classes: Array.from(el.classList),
			role: el.getAttribute('role'),
			ariaLabel: el.getAttribute('aria-label'),
			text: Array.from(el.textContent.trim()).slice(0, 100).join(''),
			hasImage: el.tagName === 'IMG' || el.querySelector('img') !== null,
			href: el.tagName === 'A' ? el.getAttribute('href') : null
		}));
}`
